/*
 * base_test.go, part of goaims.
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

package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
)

func TestBaseMakerPipeline(Te *testing.T) {
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570.0}}
	m := NewStaticMaker()
	m.Runner = runner
	j := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	fl := flow.NewFlow("one static", j.OutputRef(), j)
	root := Te.TempDir()
	res, err := flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: root, CreateFolders: true})
	require.NoError(Te, err)
	doc, ok := res.Output.(*calc.TaskDocument)
	require.True(Te, ok)
	assert.True(Te, doc.Successful())
	assert.Equal(Te, "SCF Calculation", doc.TaskLabel)
	assert.InDelta(Te, -15785.0, doc.Output.EnergyPerAtom, 1e-6)
	//the run directory got the full input set, the parsed document and an
	//archived output
	for _, name := range []string{calc.ControlFileName, calc.GeometryFileName,
		calc.ParamsFileName, calc.TaskDocName, calc.OutputFileName + ".zst"} {
		_, err := os.Stat(filepath.Join(doc.DirName, name))
		assert.NoError(Te, err, "missing %s in the run directory", name)
	}
	if _, err := os.Stat(filepath.Join(doc.DirName, calc.OutputFileName)); !os.IsNotExist(err) {
		Te.Error("the raw aims.out should be gone after archiving")
	}
}

func TestUnsuccessfulPolicies(Te *testing.T) {
	mkflow := func(policy string) (*flow.Flow, *scriptedRunner, *flow.Job) {
		runner := &scriptedRunner{Te: Te, failures: map[int]bool{1: true}}
		m := NewStaticMaker()
		m.Runner = runner
		m.HandleUnsuccessful = policy
		j1 := m.Make(Structure(siliconCell(Te)), NoPrevDir)
		j2 := flow.NewJob("dependent", func(jc *flow.JobContext) (*flow.Response, error) {
			return &flow.Response{Output: "ran"}, nil
		}).After(j1)
		return flow.NewFlow("policy", j2.OutputRef(), j1, j2), runner, j2
	}

	//default: children are stopped, the flow itself succeeds
	fl, _, j2 := mkflow(StopOnUnsuccessful)
	res, err := flow.RunLocally(context.Background(), fl, &flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err)
	_, ran := res.Responses[j2.UUID]
	assert.False(Te, ran, "children of an unsuccessful run should be skipped")

	//continue: the dependent job runs anyway
	fl, _, j2 = mkflow(ContinueOnUnsuccessful)
	res, err = flow.RunLocally(context.Background(), fl, &flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err)
	_, ran = res.Responses[j2.UUID]
	assert.True(Te, ran)

	//error: the whole flow fails
	fl, _, _ = mkflow(ErrorOnUnsuccessful)
	_, err = flow.RunLocally(context.Background(), fl, &flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.Error(Te, err)
}

//MultiStaticFlow chains restarts: every calculation after the first points
//at the directory of the one before it.
func TestMultiStaticFlow(Te *testing.T) {
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570.0, -31571.0, -31572.0}}
	m := NewStaticMaker()
	m.Runner = runner
	mols := []StructureSource{
		Structure(siliconCell(Te)),
		Structure(siliconCell(Te)),
		Structure(siliconCell(Te)),
	}
	fl, err := MultiStaticFlow(m, mols, NoPrevDir)
	require.NoError(Te, err)
	require.Len(Te, fl.Jobs, 3)
	for i := 1; i < len(fl.Jobs); i++ {
		assert.Contains(Te, fl.Jobs[i].Parents, fl.Jobs[i-1].UUID)
	}
	res, err := flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err)
	require.Equal(Te, 3, runner.calls)
	doc, ok := res.Output.(*calc.TaskDocument)
	require.True(Te, ok)
	assert.InDelta(Te, -31572.0, doc.Output.Energy, 1e-6)

	_, err = MultiStaticFlow(m, nil, NoPrevDir)
	var conf *ConfigurationErr
	require.ErrorAs(Te, err, &conf)
}

func TestGenerateDisplacements(Te *testing.T) {
	mol := siliconCell(Te)
	disps, err := GenerateDisplacements(mol, [3]int{2, 2, 2}, 0.01)
	require.NoError(Te, err)
	//3 directions per atom of the primitive cell
	require.Len(Te, disps, 6)
	super, err := mol.Supercell([3]int{2, 2, 2})
	require.NoError(Te, err)
	for _, d := range disps {
		assert.Equal(Te, super.Len(), d.Structure.Len())
		moved := d.Structure.Coords[d.Atom][d.Axis] - super.Coords[d.Atom][d.Axis]
		assert.InDelta(Te, 0.01, moved, 1e-12)
		//only one coordinate of one atom moved
		changed := 0
		for i := range super.Coords {
			for j := 0; j < 3; j++ {
				if d.Structure.Coords[i][j] != super.Coords[i][j] {
					changed++
				}
			}
		}
		assert.Equal(Te, 1, changed)
	}
	_, err = GenerateDisplacements(nil, [3]int{2, 2, 2}, 0.01)
	assert.Error(Te, err)
}
