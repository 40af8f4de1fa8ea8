/*
 * output.go, part of goaims.
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

package calc

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	aims "github.com/rmera/goaims"
)

//The aims.out landmarks this package looks for. Most results sit near the
//end of the file, so those are searched backwards.
const (
	normalEnd    = "Have a nice day"
	scfConverged = "Self-consistency cycle converged"
	totalEnergy  = "| Total energy of the DFT / Hartree-Fock s.c.f. calculation"
	numAtoms     = "| Number of atoms"
	homoLumoGap  = "ESTIMATED overall HOMO-LUMO gap"
	vbmLine      = "Highest occupied state (VBM)"
	cbmLine      = "Lowest unoccupied state (CBM)"
	forcesHeader = "Total atomic forces"
	stressHeader = "Analytical stress tensor"
)

//NormalTermination checks that an FHI-aims calculation has terminated
//normally; the program prints its farewell only after a clean run.
func NormalTermination(outname string) bool {
	return searchBackwards(normalEnd, outname) != ""
}

//SCFConverged returns true if the self-consistency cycle converged.
func SCFConverged(outname string) bool {
	return searchBackwards(scfConverged, outname) != ""
}

//Energy gets the total energy (eV) of a previous FHI-aims calculation.
//Returns an error if the energy is missing, and ErrProbableProblem together
//with the energy if there is an energy but the calculation didn't end
//properly.
func Energy(outname string) (float64, error) {
	line := searchBackwards(totalEnergy, outname)
	if line == "" {
		return 0, Error{ErrNoEnergy, outname, []string{"searchBackwards", "Energy"}, true}
	}
	split := strings.Fields(line)
	if len(split) < 2 || split[len(split)-1] != "eV" {
		return 0, Error{ErrNoEnergy, outname, []string{"Energy"}, true}
	}
	energy, err := strconv.ParseFloat(split[len(split)-2], 64)
	if err != nil {
		return 0, Error{ErrNoEnergy, outname, []string{"strconv.ParseFloat", "Energy"}, true}
	}
	if !NormalTermination(outname) {
		return energy, Error{ErrProbableProblem, outname, []string{"Energy"}, false}
	}
	return energy, nil
}

//NumAtoms reads the number of atoms the calculation saw.
func NumAtoms(outname string) (int, error) {
	line, err := searchForwards(numAtoms, outname)
	if err != nil || line == "" {
		return 0, Error{"Output does not contain the number of atoms", outname, []string{"searchForwards", "NumAtoms"}, true}
	}
	split := strings.Fields(line)
	n, err := strconv.Atoi(split[len(split)-1])
	if err != nil {
		return 0, Error{err.Error(), outname, []string{"strconv.Atoi", "NumAtoms"}, true}
	}
	return n, nil
}

//BandGap gets the HOMO-LUMO (band) gap in eV from the end of the output.
func BandGap(outname string) (float64, error) {
	return lastValueBefore(homoLumoGap, "eV", outname, ErrNoGap)
}

//VBM gets the valence band maximum (highest occupied state) in eV.
func VBM(outname string) (float64, error) {
	return lastValueBefore(vbmLine, "eV", outname, ErrNoGap)
}

//CBM gets the conduction band minimum (lowest unoccupied state) in eV.
func CBM(outname string) (float64, error) {
	return lastValueBefore(cbmLine, "eV", outname, ErrNoGap)
}

//lastValueBefore finds the last line containing marker and parses the field
//right before the given unit.
func lastValueBefore(marker, unit, outname, errmsg string) (float64, error) {
	line := searchBackwards(marker, outname)
	if line == "" {
		return 0, Error{errmsg, outname, []string{"searchBackwards", "lastValueBefore"}, true}
	}
	split := strings.Fields(line)
	for i := len(split) - 1; i > 0; i-- {
		if strings.TrimRight(split[i], ".:") == unit {
			v, err := strconv.ParseFloat(split[i-1], 64)
			if err != nil {
				return 0, Error{errmsg, outname, []string{"strconv.ParseFloat", "lastValueBefore"}, true}
			}
			return v, nil
		}
	}
	return 0, Error{errmsg, outname, []string{"lastValueBefore"}, true}
}

//Forces reads the last "Total atomic forces" block (eV/Angstrom).
func Forces(outname string) ([][3]float64, error) {
	f, err := os.Open(outname)
	if err != nil {
		return nil, Error{ErrNoOutput, outname, []string{"os.Open", "Forces"}, true}
	}
	defer f.Close()
	var forces [][3]float64
	inblock := false
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		if strings.Contains(line, forcesHeader) {
			forces = nil //only the last block counts
			inblock = true
			continue
		}
		if !inblock {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 || fields[0] != "|" {
			inblock = false
			continue
		}
		var v [3]float64
		ok := true
		for i := 0; i < 3; i++ {
			v[i], err = strconv.ParseFloat(fields[i+2], 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			inblock = false
			continue
		}
		forces = append(forces, v)
	}
	if forces == nil {
		return nil, Error{ErrNoForces, outname, []string{"Forces"}, true}
	}
	return forces, nil
}

//StressTensor reads the last analytical stress tensor (eV/Angstrom^3).
func StressTensor(outname string) (*[3][3]float64, error) {
	f, err := os.Open(outname)
	if err != nil {
		return nil, Error{ErrNoOutput, outname, []string{"os.Open", "StressTensor"}, true}
	}
	defer f.Close()
	var stress [3][3]float64
	found := false
	inblock := false
	row := 0
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		if strings.Contains(line, stressHeader) {
			inblock = true
			row = 0
			continue
		}
		if !inblock {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "|" {
			continue
		}
		axis := fields[1]
		if axis != "x" && axis != "y" && axis != "z" {
			continue
		}
		for i := 0; i < 3; i++ {
			stress[row][i], err = strconv.ParseFloat(fields[i+2], 64)
			if err != nil {
				return nil, Error{ErrNoStress, outname, []string{"strconv.ParseFloat", "StressTensor"}, true}
			}
		}
		row++
		if row == 3 {
			found = true
			inblock = false
		}
	}
	if !found {
		return nil, Error{ErrNoStress, outname, []string{"StressTensor"}, true}
	}
	return &stress, nil
}

//OptimizedGeometry reads the latest relaxed structure from a run directory
//(FHI-aims writes it to geometry.in.next_step after each relaxation step).
func OptimizedGeometry(dir string) (*aims.Atoms, error) {
	next := filepath.Join(dir, "geometry.in.next_step")
	if _, err := os.Stat(next); err != nil {
		return nil, Error{ErrNoGeometry, dir, []string{"os.Stat", "OptimizedGeometry"}, true}
	}
	mol, err := aims.GeometryRead(next)
	if err != nil {
		return nil, errDecorate(err, "OptimizedGeometry")
	}
	if !NormalTermination(filepath.Join(dir, OutputFileName)) {
		return mol, Error{ErrProbableProblem, dir, []string{"OptimizedGeometry"}, false}
	}
	return mol, nil
}

//searchForwards scans the file from the start and returns the first line
//that contains str, or an empty string.
func searchForwards(str, filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		if strings.Contains(scan.Text(), str) {
			return scan.Text(), nil
		}
	}
	return "", scan.Err()
}

//searchBackwards searches a file backwards, i.e., starting from the end,
//for a string. Returns the line that contains the string, or an empty
//string.
func searchBackwards(str, filename string) string {
	var ini int64 = 0
	var end int64 = 0
	var first bool
	first = true
	buf := make([]byte, 1)
	f, err := os.Open(filename)
	if err != nil {
		return ""
	}
	defer f.Close()
	var i int64 = 1
	for ; ; i++ {
		if _, err := f.Seek(-1*i, 2); err != nil {
			return ""
		}
		if _, err := f.Read(buf); err != nil {
			return ""
		}
		if buf[0] == byte('\n') && first == false {
			first = true
		} else if buf[0] == byte('\n') && end == 0 {
			end = i
		} else if buf[0] == byte('\n') && ini == 0 {
			ini = i
			f.Seek(-1*(ini), 2)
			bufF := make([]byte, ini-end)
			f.Read(bufF)
			if strings.Contains(string(bufF), str) {
				return string(bufF)
			}
			end = 0
			ini = 0
		}
	}
}
