/*
 * base.go, part of goaims.
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
	"fmt"

	"github.com/pkg/errors"
	aims "github.com/rmera/goaims"
	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
)

//StructureSource is where a job gets its input structure from: either a
//concrete structure known at flow-construction time, or the output
//structure of a previous job, resolved when the job actually runs.
type StructureSource struct {
	atoms *aims.Atoms
	ref   *flow.Ref
}

//Structure wraps a concrete structure.
func Structure(mol *aims.Atoms) StructureSource {
	return StructureSource{atoms: mol}
}

//StructureOf takes the final structure of the task document a previous job
//will produce.
func StructureOf(ref flow.Ref) StructureSource {
	r := ref
	return StructureSource{ref: &r}
}

func (s StructureSource) Resolve(jc *flow.JobContext) (*aims.Atoms, error) {
	if s.atoms != nil {
		return s.atoms, nil
	}
	if s.ref == nil {
		return nil, errors.New("jobs: no structure given")
	}
	v, err := jc.Resolve(*s.ref)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*calc.TaskDocument)
	if !ok {
		return nil, errors.Errorf("jobs: job %s did not produce a task document", s.ref.UUID)
	}
	if doc.Output.Structure == nil {
		return nil, errors.Errorf("jobs: task document of %s has no output structure", s.ref.UUID)
	}
	return doc.Output.Structure, nil
}

//DirSource names a previous run directory, either directly or as "wherever
//that job ended up running".
type DirSource struct {
	path string
	ref  *flow.Ref
}

//NoPrevDir is the zero DirSource: start from scratch.
var NoPrevDir = DirSource{}

//Dir wraps a concrete directory path.
func Dir(path string) DirSource {
	return DirSource{path: path}
}

//DirOf takes the run directory of the task document a previous job will
//produce.
func DirOf(ref flow.Ref) DirSource {
	r := ref
	return DirSource{ref: &r}
}

func (d DirSource) Resolve(jc *flow.JobContext) (string, error) {
	if d.ref == nil {
		return d.path, nil
	}
	v, err := jc.Resolve(*d.ref)
	if err != nil {
		return "", err
	}
	doc, ok := v.(*calc.TaskDocument)
	if !ok {
		return "", errors.Errorf("jobs: job %s did not produce a task document", d.ref.UUID)
	}
	return doc.DirName, nil
}

//A Runner actually executes FHI-aims in a prepared directory. Tests swap in
//a fake that drops pre-computed outputs in place.
type Runner interface {
	Run(ctx context.Context, dir string) error
}

//handleRunner shells out through a calc.AimsHandle.
type handleRunner struct {
	command string
}

func (r handleRunner) Run(ctx context.Context, dir string) error {
	h := calc.NewAimsHandle()
	if r.command != "" {
		h.SetCommand(r.command)
	}
	h.SetDir(dir)
	return h.Run(ctx)
}

//How a maker treats a calculation that ran but did not converge:
//stop the children (default), carry on regardless, or fail the whole flow.
const (
	StopOnUnsuccessful     = ""
	ContinueOnUnsuccessful = "continue"
	ErrorOnUnsuccessful    = "error"
)

//BaseMaker builds jobs that run one FHI-aims calculation each: copy the
//restart files of a previous run, write the input set, run the program,
//parse the task document and archive the outputs.
type BaseMaker struct {
	Name               string
	Generator          calc.SetGenerator
	UserParams         calc.ParamMap
	SpeciesDir         string
	Command            string
	KPointDensity      float64
	HandleUnsuccessful string
	//CopyPatterns are extra files to bring over from the previous run
	//directory, on top of the usual restart files.
	CopyPatterns []string
	//Runner overrides how the program is executed; nil means really
	//running FHI-aims.
	Runner Runner
}

//Make returns a job running one calculation on the given structure,
//optionally restarting from a previous directory.
func (m *BaseMaker) Make(src StructureSource, prev DirSource) *flow.Job {
	return m.MakeCalc(src, prev, nil, m.Name)
}

//MakeCalc is Make with a per-job parameter override and label; the
//convergence loop uses it to sweep one field over a series of jobs built
//from the same maker.
func (m *BaseMaker) MakeCalc(src StructureSource, prev DirSource, override calc.ParamMap, label string) *flow.Job {
	maker := *m //the job must not see later mutations of the maker
	return flow.NewJob(label, func(jc *flow.JobContext) (*flow.Response, error) {
		return maker.run(jc, src, prev, override, label)
	})
}

func (m *BaseMaker) run(jc *flow.JobContext, src StructureSource, prev DirSource, override calc.ParamMap, label string) (*flow.Response, error) {
	mol, err := src.Resolve(jc)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: resolving input structure", label)
	}
	prevDir, err := prev.Resolve(jc)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: resolving previous directory", label)
	}
	if prevDir != "" {
		patterns := append([]string{}, aims.RestartPatterns...)
		patterns = append(patterns, m.CopyPatterns...)
		if err := aims.CopyOutputs(prevDir, jc.Dir, patterns); err != nil {
			return nil, errors.Wrapf(err, "%s: copying outputs from %s", label, prevDir)
		}
	}
	user := m.UserParams.Copy()
	for k, v := range override {
		user[k] = v
	}
	params, err := calc.BuildParameters(m.Generator, mol, prevDir, user, m.KPointDensity)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: building parameters", label)
	}
	Q := &calc.Calc{Params: params, SpeciesDir: m.SpeciesDir}
	h := calc.NewAimsHandle()
	if m.Command != "" {
		h.SetCommand(m.Command)
	}
	h.SetDir(jc.Dir)
	if err := h.BuildInput(mol, Q); err != nil {
		return nil, errors.Wrapf(err, "%s: writing input files", label)
	}
	runner := m.Runner
	if runner == nil {
		runner = handleRunner{command: m.Command}
	}
	if err := runner.Run(jc.Ctx, jc.Dir); err != nil {
		return nil, errors.Wrapf(err, "%s: running FHI-aims", label)
	}
	doc, err := calc.TaskDocFromDirectory(jc.Dir, label)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: parsing outputs", label)
	}
	if err := doc.Write(); err != nil {
		jc.Log.Warnf("Could not persist task document: %v", err)
	}
	if err := aims.ArchiveOutputs(jc.Dir); err != nil {
		jc.Log.Warnf("Could not archive outputs: %v", err)
	}
	stop, err := shouldStopChildren(doc, m.HandleUnsuccessful)
	if err != nil {
		return nil, errors.Wrap(err, label)
	}
	return &flow.Response{Output: doc, StopChildren: stop}, nil
}

//shouldStopChildren decides whether jobs depending on this calculation may
//still run. A successful run never stops anything; an unsuccessful one
//stops its children, is ignored, or fails the flow, depending on policy.
func shouldStopChildren(doc *calc.TaskDocument, policy string) (bool, error) {
	if doc.Successful() {
		return false, nil
	}
	switch policy {
	case StopOnUnsuccessful:
		return true, nil
	case ContinueOnUnsuccessful:
		return false, nil
	case ErrorOnUnsuccessful:
		return false, errors.Errorf("jobs: calculation in %s was not successful", doc.DirName)
	}
	return false, fmt.Errorf("jobs: unknown unsuccessful-run policy %q", policy)
}
