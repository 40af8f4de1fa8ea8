/*
 * phonon.go, part of goaims.
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

package flows

import (
	"fmt"

	"github.com/pkg/errors"
	aims "github.com/rmera/goaims"
	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
	"github.com/rmera/goaims/jobs"
)

//DisplacementForces pairs one finite displacement with the forces FHI-aims
//computed on the displaced supercell.
type DisplacementForces struct {
	Atom   int          `json:"atom"`
	Axis   int          `json:"axis"`
	Delta  float64      `json:"delta"`
	Forces [][3]float64 `json:"forces"`
}

//PhononDocument collects everything a force-constant fit needs: the relaxed
//primitive cell, the supercell repetition and the forces at every
//displacement.
type PhononDocument struct {
	Structure *aims.Atoms          `json:"structure"`
	Supercell [3]int               `json:"supercell"`
	Delta     float64              `json:"delta"`
	Forces    []DisplacementForces `json:"forces"`
}

//PhononMaker builds the finite-displacement phonon workflow: relax the cell
//tightly, displace every atom along every axis in a supercell, evaluate
//forces on each displaced structure, and collect the lot into a
//PhononDocument.
type PhononMaker struct {
	Name string
	//Relax prepares the reference geometry; nil skips the relaxation and
	//uses the given structure as-is (it had better be well relaxed, or the
	//residual forces will pollute the force constants).
	Relax *jobs.BaseMaker
	//Static evaluates forces on the displaced supercells.
	Static *jobs.BaseMaker
	//Supercell is the diagonal repetition of the primitive cell.
	Supercell [3]int
	//Delta is the displacement amplitude in Angstrom; zero picks the
	//default.
	Delta float64
}

//NewPhononMaker builds the default workflow with an n1 x n2 x n3 supercell.
func NewPhononMaker(n [3]int) *PhononMaker {
	relax := jobs.NewRelaxMaker()
	relax.UserParams = calc.ParamMap{"relax_geometry": "trm 1e-3"}
	return &PhononMaker{
		Name:      "phonon",
		Relax:     relax,
		Static:    jobs.NewForceMaker(),
		Supercell: n,
		Delta:     jobs.DefaultDisplacement,
	}
}

//Make assembles the flow. Because the displacements depend on the relaxed
//geometry, which does not exist yet, the displacement statics are appended
//at run time by a generator job that runs after the relaxation; the final
//collector job is created with them and closes over their refs.
func (m *PhononMaker) Make(mol *aims.Atoms) (*flow.Flow, error) {
	if mol == nil || !mol.Periodic() {
		return nil, &jobs.ConfigurationErr{Reason: "phonons need a periodic structure"}
	}
	for _, n := range m.Supercell {
		if n < 1 {
			return nil, &jobs.ConfigurationErr{Reason: fmt.Sprintf("bad supercell %v", m.Supercell)}
		}
	}
	if m.Relax == nil {
		gen := flow.NewJob("phonon displacements", func(jc *flow.JobContext) (*flow.Response, error) {
			return m.displace(jc, mol, jobs.NoPrevDir)
		})
		return flow.NewFlow(m.Name, gen.OutputRef(), gen), nil
	}
	j1 := m.Relax.Make(jobs.Structure(mol), jobs.NoPrevDir)
	src := jobs.StructureOf(j1.OutputRef())
	gen := flow.NewJob("phonon displacements", func(jc *flow.JobContext) (*flow.Response, error) {
		relaxed, err := resolveStructure(jc, src)
		if err != nil {
			return nil, err
		}
		return m.displace(jc, relaxed, jobs.DirOf(j1.OutputRef()))
	}).After(j1)
	return flow.NewFlow(m.Name, gen.OutputRef(), j1, gen), nil
}

//displace generates the displaced supercells and returns them, as an
//addition, as one force job each plus the collector.
func (m *PhononMaker) displace(jc *flow.JobContext, mol *aims.Atoms, prev jobs.DirSource) (*flow.Response, error) {
	disps, err := jobs.GenerateDisplacements(mol, m.Supercell, m.Delta)
	if err != nil {
		return nil, errors.Wrap(err, "phonon")
	}
	jc.Log.Infof("Generated %d displacements for a %v supercell", len(disps), m.Supercell)
	added := make([]*flow.Job, 0, len(disps)+1)
	refs := make([]flow.Ref, 0, len(disps))
	forceJobs := make([]*flow.Job, 0, len(disps))
	for i, d := range disps {
		j := m.Static.MakeCalc(jobs.Structure(d.Structure), prev, nil,
			fmt.Sprintf("phonon static %d/%d", i+1, len(disps)))
		refs = append(refs, j.OutputRef())
		forceJobs = append(forceJobs, j)
		added = append(added, j)
	}
	collect := flow.NewJob("phonon collect", func(jc *flow.JobContext) (*flow.Response, error) {
		return m.collect(jc, mol, disps, refs)
	}).After(forceJobs...)
	added = append(added, collect)
	return &flow.Response{
		Output:   len(disps),
		Addition: flow.NewFlow("phonon statics", collect.OutputRef(), added...),
	}, nil
}

func (m *PhononMaker) collect(jc *flow.JobContext, mol *aims.Atoms, disps []jobs.Displacement, refs []flow.Ref) (*flow.Response, error) {
	doc := &PhononDocument{
		Structure: mol,
		Supercell: m.Supercell,
		Delta:     m.Delta,
	}
	for i, r := range refs {
		v, err := jc.Resolve(r)
		if err != nil {
			return nil, errors.Wrapf(err, "phonon: displacement %d", i)
		}
		task, ok := v.(*calc.TaskDocument)
		if !ok {
			return nil, errors.Errorf("phonon: displacement %d did not produce a task document", i)
		}
		if !task.Successful() {
			return nil, errors.Errorf("phonon: displacement %d (%s) failed", i, task.DirName)
		}
		if len(task.Output.Forces) == 0 {
			return nil, errors.Errorf("phonon: no forces in the output of displacement %d", i)
		}
		doc.Forces = append(doc.Forces, DisplacementForces{
			Atom:   disps[i].Atom,
			Axis:   disps[i].Axis,
			Delta:  disps[i].Delta,
			Forces: task.Output.Forces,
		})
	}
	return &flow.Response{Output: doc}, nil
}

func resolveStructure(jc *flow.JobContext, src jobs.StructureSource) (*aims.Atoms, error) {
	mol, err := src.Resolve(jc)
	if err != nil {
		return nil, errors.Wrap(err, "phonon: resolving relaxed structure")
	}
	return mol, nil
}
