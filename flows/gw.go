/*
 * gw.go, part of goaims.
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
	aims "github.com/rmera/goaims"
	"github.com/rmera/goaims/calc"
	"github.com/rmera/goaims/flow"
	"github.com/rmera/goaims/jobs"
)

//GWConvergenceMaker prepares a GW band-gap calculation: a DFT ground state
//that writes its density matrices out for reuse, a band structure for
//periodic systems, and then GW runs repeated over a convergence sweep until
//the gap stabilizes.
type GWConvergenceMaker struct {
	Name string
	//GroundState computes the underlying DFT state; its density restart
	//files feed every GW step.
	GroundState *jobs.BaseMaker
	//GW is the maker swept by the convergence loop.
	GW *jobs.BaseMaker
	//Bands computes the band structure of the DFT state for periodic
	//systems; nil skips it.
	Bands *jobs.BaseMaker
	//CriterionName is the watched quantity, bandgap unless told otherwise.
	CriterionName string
	//Epsilon is the tolerance on the gap, in eV.
	Epsilon float64
	//ConvergenceField and ConvergenceSteps define the sweep, typically over
	//k_grid or empty_states.
	ConvergenceField string
	ConvergenceSteps []any
}

//NewGWConvergenceMaker builds the default gap-vs-k-grid sweep: the gap must
//move by less than epsilon eV between consecutive grids.
func NewGWConvergenceMaker(epsilon float64, kgrids ...[]int) *GWConvergenceMaker {
	gs := jobs.NewStaticMaker()
	gs.Name = "Ground state aims"
	gs.UserParams = calc.ParamMap{"elsi_restart": "read_and_write 1"}
	steps := make([]any, len(kgrids))
	for i, g := range kgrids {
		steps[i] = g
	}
	return &GWConvergenceMaker{
		Name:             "GW convergence",
		GroundState:      gs,
		GW:               jobs.NewGWMaker(20),
		Bands:            jobs.NewBandStructureMaker(20),
		CriterionName:    "bandgap",
		Epsilon:          epsilon,
		ConvergenceField: "k_grid",
		ConvergenceSteps: steps,
	}
}

//Make assembles the flow: ground state, band structure when the structure
//is periodic, then the self-extending GW convergence chain started from the
//ground state's density.
func (m *GWConvergenceMaker) Make(mol *aims.Atoms) (*flow.Flow, error) {
	if mol == nil {
		return nil, &jobs.ConfigurationErr{Reason: "no structure given"}
	}
	gs := m.GroundState.Make(jobs.Structure(mol), jobs.NoPrevDir)
	all := []*flow.Job{gs}
	last := gs
	if m.Bands != nil && mol.Periodic() {
		jb := m.Bands.Make(jobs.Structure(mol), jobs.DirOf(gs.OutputRef())).After(gs)
		all = append(all, jb)
		last = jb
	}
	conv := &jobs.ConvergenceMaker{
		Name:             m.Name,
		Maker:            m.GW,
		CriterionName:    m.CriterionName,
		Epsilon:          m.Epsilon,
		ConvergenceField: m.ConvergenceField,
		ConvergenceSteps: m.ConvergenceSteps,
	}
	sub, err := conv.Make(jobs.Structure(mol), jobs.DirOf(gs.OutputRef()))
	if err != nil {
		return nil, err
	}
	sub.Jobs[0].After(last)
	all = append(all, sub.Jobs...)
	return flow.NewFlow(m.Name, sub.Output, all...), nil
}
