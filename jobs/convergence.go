/*
 * convergence.go, part of goaims.
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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package jobs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
)

//StateFileName is the artifact carrying the convergence bookkeeping from
//one iteration of a chain to the next.
const StateFileName = "convergence.json"

//ConfigurationErr reports a convergence flow that could never run: it is
//returned at construction time, before anything is dispatched.
type ConfigurationErr struct {
	Reason string
}

func (e *ConfigurationErr) Error() string {
	return "convergence: bad configuration: " + e.Reason
}

//CalculationFailedErr aborts a convergence chain when an underlying run did
//not complete successfully. A failed calculation is never treated as a data
//point.
type CalculationFailedErr struct {
	Dir   string
	Label string
}

func (e *CalculationFailedErr) Error() string {
	return fmt.Sprintf("convergence: calculation %q in %s failed; aborting the chain", e.Label, e.Dir)
}

//ConvergenceState is the persisted record threaded between the iterations
//of one chain: the criterion watched, its values so far, the swept field
//and the values tried. After every update the three histories and the index
//satisfy len(values) == len(fieldValues) == index+1.
type ConvergenceState struct {
	CriterionName   string    `json:"criterion_name"`
	CriterionValues []float64 `json:"criterion_values"`
	FieldName       string    `json:"convergence_field_name"`
	FieldValues     []any     `json:"convergence_field_values"`
	Index           int       `json:"index"`
}

//ConvergenceResult is the terminal output of a chain. Converged false means
//the steps ran out before the criterion stabilized; that is a reported
//outcome, not an error, and the caller must check it. ActualEpsilon is the
//last |delta| seen, absent when only one step was ever run.
type ConvergenceResult struct {
	Converged     bool     `json:"converged"`
	FieldValue    any      `json:"convergence_field_value"`
	ActualEpsilon *float64 `json:"actual_epsilon,omitempty"`
	CriterionName string   `json:"criterion_name"`
}

//isConverged decides convergence from the tail of the criterion history:
//the last two values must differ by less than epsilon. A history shorter
//than two values is never converged. With epsilon exactly zero only
//bit-equal consecutive values converge; pathological, but allowed.
func isConverged(history []float64, epsilon float64) bool {
	if len(history) < 2 {
		return false
	}
	d := math.Abs(history[len(history)-1] - history[len(history)-2])
	if epsilon == 0 {
		return d == 0
	}
	return d < epsilon
}

//nextStep hands out the step values strictly in the caller-given order.
//exhausted is true once index walks past the list; the caller must tell
//that apart from "not yet converged".
func nextStep(index int, steps []any) (value any, exhausted bool) {
	if index >= len(steps) {
		return nil, true
	}
	return steps[index], false
}

//ConvergenceMaker builds a self-replicating convergence chain: run the
//wrapped calculation at the first step value, compare the watched criterion
//against the previous iteration, and either append the next iteration or
//finish with a summary. The chain grows one iteration at a time and is
//bounded by the number of steps.
type ConvergenceMaker struct {
	Name string
	//Maker produces the underlying calculation jobs; the convergence field
	//is injected as a parameter override.
	Maker *BaseMaker
	//CriterionName names the scalar watched for stabilization; it must be
	//in the run results (see calc.TaskDocument.CriterionValue).
	CriterionName string
	//Epsilon is the tolerance on the difference of consecutive criterion
	//values. Zero demands bit-exact equality; negative is rejected.
	Epsilon float64
	//ConvergenceField is the control.in parameter being swept.
	ConvergenceField string
	//ConvergenceSteps are the values tried, in order, until convergence.
	ConvergenceSteps []any
}

//Make validates the configuration and returns the initial two-job flow:
//the calculation at steps[0] plus its convergence check. Nothing is
//dispatched if the configuration is broken.
func (m *ConvergenceMaker) Make(src StructureSource, prev DirSource) (*flow.Flow, error) {
	if len(m.ConvergenceSteps) == 0 {
		return nil, &ConfigurationErr{Reason: "empty convergence steps list"}
	}
	if m.Epsilon < 0 {
		return nil, &ConfigurationErr{Reason: fmt.Sprintf("negative epsilon %g", m.Epsilon)}
	}
	if m.CriterionName == "" || m.ConvergenceField == "" {
		return nil, &ConfigurationErr{Reason: "criterion and convergence field must be named"}
	}
	if m.Maker == nil {
		return nil, &ConfigurationErr{Reason: "no calculation maker given"}
	}
	name := m.Name
	if name == "" {
		name = "convergence"
	}
	calcJob := m.makeCalcJob(src, prev, 0)
	checkJob := m.makeCheckJob(src, calcJob.OutputRef(), "", 0).After(calcJob)
	return flow.NewFlow(name, checkJob.OutputRef(), calcJob, checkJob), nil
}

func (m *ConvergenceMaker) makeCalcJob(src StructureSource, prev DirSource, index int) *flow.Job {
	value, _ := nextStep(index, m.ConvergenceSteps)
	override := calc.ParamMap{m.ConvergenceField: value}
	maker := *m.Maker
	//the check job must always run, it is the one that turns a failed
	//calculation into an aborted chain
	maker.HandleUnsuccessful = ContinueOnUnsuccessful
	return maker.MakeCalc(src, prev, override, fmt.Sprintf("%s %d", maker.Name, index))
}

//makeCheckJob builds the job that evaluates iteration `index`, reading the
//chain's state from stateDir (empty on the first iteration) and the
//calculation's result through calcRef.
func (m *ConvergenceMaker) makeCheckJob(src StructureSource, calcRef flow.Ref, stateDir string, index int) *flow.Job {
	name := m.Name
	if name == "" {
		name = "convergence"
	}
	return flow.NewJob(fmt.Sprintf("%s check %d", name, index), func(jc *flow.JobContext) (*flow.Response, error) {
		return m.check(jc, src, calcRef, stateDir, index)
	})
}

func (m *ConvergenceMaker) check(jc *flow.JobContext, src StructureSource, calcRef flow.Ref, stateDir string, index int) (*flow.Response, error) {
	v, err := jc.Resolve(calcRef)
	if err != nil {
		return nil, errors.Wrap(err, "convergence: resolving calculation output")
	}
	doc, ok := v.(*calc.TaskDocument)
	if !ok {
		return nil, errors.New("convergence: underlying job did not produce a task document")
	}
	if !doc.Successful() {
		return nil, &CalculationFailedErr{Dir: doc.DirName, Label: doc.TaskLabel}
	}
	state, err := m.loadState(stateDir, index)
	if err != nil {
		return nil, err
	}
	value, err := doc.CriterionValue(m.CriterionName)
	if err != nil {
		return nil, errors.Wrap(err, "convergence")
	}
	stepValue, exhausted := nextStep(index, m.ConvergenceSteps)
	if exhausted { //can't happen: the job for index len(steps) is never created
		return nil, errors.Errorf("convergence: iteration %d beyond the %d declared steps", index, len(m.ConvergenceSteps))
	}
	state.CriterionValues = append(state.CriterionValues, value)
	state.FieldValues = append(state.FieldValues, stepValue)
	state.Index = index
	var actual *float64
	if n := len(state.CriterionValues); n >= 2 {
		d := math.Abs(state.CriterionValues[n-1] - state.CriterionValues[n-2])
		actual = &d
	}
	if err := m.saveState(jc.Dir, state); err != nil {
		return nil, err
	}
	if isConverged(state.CriterionValues, m.Epsilon) {
		jc.Log.Infof("Converged: %s stable to %g at %s = %v", m.CriterionName, m.Epsilon, m.ConvergenceField, stepValue)
		return &flow.Response{Output: &ConvergenceResult{
			Converged:     true,
			FieldValue:    stepValue,
			ActualEpsilon: actual,
			CriterionName: m.CriterionName,
		}}, nil
	}
	if _, exhausted := nextStep(index+1, m.ConvergenceSteps); exhausted {
		//ran out of steps without converging: a reported failure, not a
		//fatal one. The caller must look at Converged.
		jc.Log.Warnf("Steps exhausted: %s did not stabilize to %g within %d values of %s", m.CriterionName, m.Epsilon, len(m.ConvergenceSteps), m.ConvergenceField)
		return &flow.Response{Output: &ConvergenceResult{
			Converged:     false,
			FieldValue:    stepValue,
			ActualEpsilon: actual,
			CriterionName: m.CriterionName,
		}}, nil
	}
	nextCalc := m.makeCalcJob(src, Dir(doc.DirName), index+1)
	nextCheck := m.makeCheckJob(src, nextCalc.OutputRef(), jc.Dir, index+1).After(nextCalc)
	addition := flow.NewFlow(fmt.Sprintf("%s iteration %d", m.ConvergenceField, index+1), nextCheck.OutputRef(), nextCalc, nextCheck)
	return &flow.Response{Output: state, Addition: addition}, nil
}

//loadState reads the chain's state back from the previous check job's
//directory, or starts a fresh record on the first iteration.
func (m *ConvergenceMaker) loadState(stateDir string, index int) (*ConvergenceState, error) {
	if stateDir == "" {
		if index != 0 {
			return nil, errors.Errorf("convergence: iteration %d has no prior state", index)
		}
		return &ConvergenceState{
			CriterionName: m.CriterionName,
			FieldName:     m.ConvergenceField,
		}, nil
	}
	data, err := os.ReadFile(filepath.Join(stateDir, StateFileName))
	if err != nil {
		return nil, errors.Wrap(err, "convergence: reading chain state")
	}
	state := new(ConvergenceState)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrap(err, "convergence: decoding chain state")
	}
	if len(state.CriterionValues) != state.Index+1 || len(state.FieldValues) != state.Index+1 {
		return nil, errors.Errorf("convergence: corrupt chain state in %s: %d values, %d field values, index %d",
			stateDir, len(state.CriterionValues), len(state.FieldValues), state.Index)
	}
	return state, nil
}

func (m *ConvergenceMaker) saveState(dir string, state *ConvergenceState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "convergence: encoding chain state")
	}
	if err := os.WriteFile(filepath.Join(dir, StateFileName), data, 0644); err != nil {
		return errors.Wrap(err, "convergence: persisting chain state")
	}
	return nil
}
