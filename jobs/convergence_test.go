/*
 * convergence_test.go, part of goaims.
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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aims "github.com/rmera/goaims"
	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
)

func siliconCell(Te *testing.T) *aims.Atoms {
	mol, err := aims.NewAtoms([]string{"Si", "Si"}, [][3]float64{
		{0, 0, 0}, {1.3575, 1.3575, 1.3575}})
	require.NoError(Te, err)
	mol.SetLattice([3][3]float64{{0, 2.715, 2.715}, {2.715, 0, 2.715}, {2.715, 2.715, 0}})
	return mol
}

//writeAimsOut drops a minimal but parseable aims.out into dir. A run
//without the farewell line reads as failed.
func writeAimsOut(Te *testing.T, dir string, energy float64, completed bool) {
	out := "  Invoking FHI-aims ...\n"
	out += "  | Number of atoms                   :        2\n"
	out += "  Self-consistency cycle converged.\n"
	out += fmt.Sprintf("  | Total energy of the DFT / Hartree-Fock s.c.f. calculation      :    %.8f eV\n", energy)
	if completed {
		out += "          Have a nice day.\n"
		out += "------------------------------------------------------------\n"
	}
	require.NoError(Te, os.WriteFile(filepath.Join(dir, calc.OutputFileName), []byte(out), 0644))
}

//scriptedRunner plays back a pre-computed total energy per call instead of
//running FHI-aims. A call number in failures produces a dead run.
type scriptedRunner struct {
	Te       *testing.T
	energies []float64
	failures map[int]bool //1-based call numbers
	calls    int
	dirs     []string
}

func (r *scriptedRunner) Run(ctx context.Context, dir string) error {
	r.calls++
	r.dirs = append(r.dirs, dir)
	if r.failures[r.calls] {
		writeAimsOut(r.Te, dir, 0, false)
		return nil
	}
	require.LessOrEqual(r.Te, r.calls, len(r.energies), "more calculations dispatched than scripted")
	writeAimsOut(r.Te, dir, r.energies[r.calls-1], true)
	return nil
}

func kgridSteps() []any {
	return []any{[]int{3, 3, 3}, []int{4, 4, 4}, []int{5, 5, 5}, []int{6, 6, 6}}
}

func kgridMaker(runner Runner) *ConvergenceMaker {
	base := NewStaticMaker()
	base.Runner = runner
	return &ConvergenceMaker{
		Name:             "kgrid convergence",
		Maker:            base,
		CriterionName:    "energy_per_atom",
		Epsilon:          0.2,
		ConvergenceField: "k_grid",
		ConvergenceSteps: kgridSteps(),
	}
}

//The chain stops at the first step whose energy per atom agrees with the
//previous one to within epsilon, without touching the remaining steps.
func TestConvergenceReached(Te *testing.T) {
	//energies per atom: -15785.0, -15785.77, -15785.82; the second
	//difference (0.05 eV/atom) is below the 0.2 tolerance
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570.0, -31571.54, -31571.64}}
	m := kgridMaker(runner)
	fl, err := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	require.NoError(Te, err)
	res, err := flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err)
	require.Equal(Te, 3, runner.calls, "convergence at the third step should dispatch exactly 3 calculations")
	result, ok := res.Output.(*ConvergenceResult)
	require.True(Te, ok, "the chain should end in a ConvergenceResult, got %T", res.Output)
	assert.True(Te, result.Converged)
	assert.Equal(Te, []int{5, 5, 5}, result.FieldValue)
	assert.Equal(Te, "energy_per_atom", result.CriterionName)
	require.NotNil(Te, result.ActualEpsilon)
	assert.InDelta(Te, 0.05, *result.ActualEpsilon, 1e-9)
}

//Each dispatched calculation gets its own step value as a parameter
//override, on top of the maker's usual set.
func TestConvergenceOverrides(Te *testing.T) {
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570.0, -31571.54, -31571.64}}
	m := kgridMaker(runner)
	fl, err := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	require.NoError(Te, err)
	_, err = flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err)
	want := kgridSteps()
	for i, dir := range runner.dirs {
		params, err := calc.ReadParams(filepath.Join(dir, calc.ParamsFileName))
		require.NoError(Te, err)
		grid, err := json.Marshal(params["k_grid"])
		require.NoError(Te, err)
		step, err := json.Marshal(want[i])
		require.NoError(Te, err)
		assert.JSONEq(Te, string(step), string(grid), "calculation %d ran with the wrong k_grid", i)
	}
}

//Running out of steps is a reported outcome, not an error: the chain
//dispatches every step exactly once and finishes with Converged false.
func TestConvergenceExhausted(Te *testing.T) {
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570, -31572, -31574, -31576}}
	m := kgridMaker(runner)
	fl, err := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	require.NoError(Te, err)
	res, err := flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err, "an unconverged chain is not a failed chain")
	require.Equal(Te, 4, runner.calls, "every step should be tried exactly once")
	result, ok := res.Output.(*ConvergenceResult)
	require.True(Te, ok)
	assert.False(Te, result.Converged)
	assert.Equal(Te, []int{6, 6, 6}, result.FieldValue)
	require.NotNil(Te, result.ActualEpsilon)
	assert.InDelta(Te, 1.0, *result.ActualEpsilon, 1e-9)
}

//A broken configuration is rejected before anything runs.
func TestConvergenceBadConfiguration(Te *testing.T) {
	runner := &scriptedRunner{Te: Te}
	src := Structure(siliconCell(Te))

	m := kgridMaker(runner)
	m.Epsilon = -0.1
	_, err := m.Make(src, NoPrevDir)
	var conf *ConfigurationErr
	require.ErrorAs(Te, err, &conf)

	m = kgridMaker(runner)
	m.ConvergenceSteps = nil
	_, err = m.Make(src, NoPrevDir)
	require.ErrorAs(Te, err, &conf)

	m = kgridMaker(runner)
	m.Maker = nil
	_, err = m.Make(src, NoPrevDir)
	require.ErrorAs(Te, err, &conf)

	assert.Zero(Te, runner.calls, "a rejected configuration must not dispatch anything")
}

//A calculation that dies mid-chain aborts the whole chain with an error;
//its energy never enters the history.
func TestConvergenceCalculationFailure(Te *testing.T) {
	runner := &scriptedRunner{Te: Te,
		energies: []float64{-31570.0, 0, -31571.54},
		failures: map[int]bool{2: true}}
	m := kgridMaker(runner)
	fl, err := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	require.NoError(Te, err)
	_, err = flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.Error(Te, err)
	var failed *CalculationFailedErr
	require.ErrorAs(Te, err, &failed)
	assert.Equal(Te, 2, runner.calls, "nothing should run after the failed calculation")
}

//The chain's bookkeeping is persisted in the check jobs' directories and
//grows by one entry per iteration.
func TestConvergenceStatePersistence(Te *testing.T) {
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570.0, -31571.54, -31571.64}}
	m := kgridMaker(runner)
	fl, err := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	require.NoError(Te, err)
	root := Te.TempDir()
	_, err = flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: root, CreateFolders: true})
	require.NoError(Te, err)
	names, err := filepath.Glob(filepath.Join(root, "*", StateFileName))
	require.NoError(Te, err)
	require.Len(Te, names, 3, "one state file per check job")
	sort.Strings(names) //job directories are numbered in execution order
	for i, name := range names {
		data, err := os.ReadFile(name)
		require.NoError(Te, err)
		state := new(ConvergenceState)
		require.NoError(Te, json.Unmarshal(data, state))
		assert.Equal(Te, i, state.Index)
		assert.Len(Te, state.CriterionValues, i+1)
		assert.Len(Te, state.FieldValues, i+1)
		assert.Equal(Te, "energy_per_atom", state.CriterionName)
		assert.Equal(Te, "k_grid", state.FieldName)
	}
}

//Epsilon zero is legal and demands bit-exact agreement.
func TestConvergenceZeroEpsilon(Te *testing.T) {
	runner := &scriptedRunner{Te: Te, energies: []float64{-31570.5, -31570.5}}
	m := kgridMaker(runner)
	m.Epsilon = 0
	fl, err := m.Make(Structure(siliconCell(Te)), NoPrevDir)
	require.NoError(Te, err)
	res, err := flow.RunLocally(context.Background(), fl,
		&flow.RunOptions{RootDir: Te.TempDir(), CreateFolders: true})
	require.NoError(Te, err)
	result, ok := res.Output.(*ConvergenceResult)
	require.True(Te, ok)
	assert.True(Te, result.Converged)
	assert.Equal(Te, 2, runner.calls)
}

func TestIsConverged(Te *testing.T) {
	assert.False(Te, isConverged(nil, 0.2))
	assert.False(Te, isConverged([]float64{1.0}, 0.2))
	assert.True(Te, isConverged([]float64{1.0, 1.1}, 0.2))
	assert.False(Te, isConverged([]float64{1.0, 1.3}, 0.2))
	assert.False(Te, isConverged([]float64{1.0, 1.2}, 0.2), "the comparison is strict")
	assert.True(Te, isConverged([]float64{5.0, 1.0, 1.0}, 0), "bit-exact agreement at epsilon zero")
	assert.False(Te, isConverged([]float64{1.0, 1.0 + 1e-15}, 0))
}
