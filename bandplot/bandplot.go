/*
 * bandplot.go, part of goaims.
 *
 * Copyright 2023 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 * Goaims is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.
 *
 */

//Package bandplot reads the band####.out files FHI-aims writes for each
//segment of a band path and turns them into a band-structure figure.
package bandplot

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//Segment holds one leg of the band path: the fractional k-points sampled
//and, for every k-point, the occupations and eigenvalues (in eV) of each
//state.
type Segment struct {
	Kpoints     [][3]float64
	Occupations [][]float64
	Energies    [][]float64
}

//NStates returns the number of states per k-point, 0 for an empty segment.
func (s *Segment) NStates() int {
	if len(s.Energies) == 0 {
		return 0
	}
	return len(s.Energies[0])
}

//ReadBandFile parses one band####.out file. Each line is the k-point index,
//the three fractional coordinates, and then one (occupation, energy)
//pair per state.
func ReadBandFile(name string) (*Segment, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("bandplot: %w", err)
	}
	defer f.Close()
	seg := new(Segment)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || (len(fields)-4)%2 != 0 {
			return nil, fmt.Errorf("bandplot: malformed line in %s: %q", name, scanner.Text())
		}
		var k [3]float64
		for i := 0; i < 3; i++ {
			k[i], err = strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("bandplot: bad k-point in %s: %w", name, err)
			}
		}
		n := (len(fields) - 4) / 2
		occ := make([]float64, n)
		ene := make([]float64, n)
		for i := 0; i < n; i++ {
			occ[i], err = strconv.ParseFloat(fields[4+2*i], 64)
			if err != nil {
				return nil, fmt.Errorf("bandplot: bad occupation in %s: %w", name, err)
			}
			ene[i], err = strconv.ParseFloat(fields[5+2*i], 64)
			if err != nil {
				return nil, fmt.Errorf("bandplot: bad energy in %s: %w", name, err)
			}
		}
		if seg.NStates() != 0 && n != seg.NStates() {
			return nil, fmt.Errorf("bandplot: %s changes from %d to %d states mid-file", name, seg.NStates(), n)
		}
		seg.Kpoints = append(seg.Kpoints, k)
		seg.Occupations = append(seg.Occupations, occ)
		seg.Energies = append(seg.Energies, ene)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bandplot: reading %s: %w", name, err)
	}
	if len(seg.Kpoints) == 0 {
		return nil, fmt.Errorf("bandplot: no k-points in %s", name)
	}
	return seg, nil
}

//ReadBandDir reads every band*.out file of a finished run, sorted by name,
//which is the order the control.in band lines were given in.
func ReadBandDir(dir string) ([]*Segment, error) {
	names, err := filepath.Glob(filepath.Join(dir, "band*.out"))
	if err != nil {
		return nil, fmt.Errorf("bandplot: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("bandplot: no band output files in %s", dir)
	}
	sort.Strings(names)
	segs := make([]*Segment, 0, len(names))
	for _, name := range names {
		seg, err := ReadBandFile(name)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

//ValenceMaximum returns the highest energy of any appreciably occupied
//state over the given segments. Plots are usually referenced to it.
func ValenceMaximum(segs []*Segment) (float64, error) {
	vbm := math.Inf(-1)
	found := false
	for _, seg := range segs {
		for i, occ := range seg.Occupations {
			for j, o := range occ {
				if o > 0.1 && seg.Energies[i][j] > vbm {
					vbm = seg.Energies[i][j]
					found = true
				}
			}
		}
	}
	if !found {
		return 0, fmt.Errorf("bandplot: no occupied states found")
	}
	return vbm, nil
}

func basicBandPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Padding = 3 * vg.Millimeter
	p.Title.Text = title
	p.X.Label.Text = "k-path"
	p.Y.Label.Text = "Energy (eV)"
	p.Add(plotter.NewGrid())
	return p
}

/*Plot draws the band structure over the given segments into a png file
  (the .png extension is appended to plotname). Energies are shifted so
  eshift sits at zero; pass the valence-band maximum or the Fermi level.
  Labels, when given, must have one entry per segment boundary, that is
  len(segs)+1 of them.*/
func Plot(segs []*Segment, labels []string, eshift float64, title, plotname string) error {
	if len(segs) == 0 {
		return fmt.Errorf("bandplot: nothing to plot")
	}
	if labels != nil && len(labels) != len(segs)+1 {
		return fmt.Errorf("bandplot: %d segments need %d labels, got %d", len(segs), len(segs)+1, len(labels))
	}
	p := basicBandPlot(title)
	//One x unit per k-point, accumulated across segments. Real path
	//lengths would need the reciprocal cell; for looking at gaps and
	//dispersions this is enough.
	ticks := []plot.Tick{}
	x0 := 0.0
	for si, seg := range segs {
		if labels != nil {
			ticks = append(ticks, plot.Tick{Value: x0, Label: labels[si]})
		}
		for b := 0; b < seg.NStates(); b++ {
			pts := make(plotter.XYs, len(seg.Kpoints))
			for i := range seg.Kpoints {
				pts[i].X = x0 + float64(i)
				pts[i].Y = seg.Energies[i][b] - eshift
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("bandplot: %w", err)
			}
			line.Color = color.RGBA{B: 255, A: 255}
			p.Add(line)
		}
		x0 += float64(len(seg.Kpoints) - 1)
	}
	if labels != nil {
		ticks = append(ticks, plot.Tick{Value: x0, Label: labels[len(segs)]})
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
	}
	p.X.Min = 0
	p.X.Max = x0
	filename := fmt.Sprintf("%s.png", plotname)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("bandplot: %w", err)
	}
	return nil
}
