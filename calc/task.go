/*
 * task.go, part of goaims.
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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	aims "github.com/rmera/goaims"
)

//Status is the final state of a task.
type Status string

const (
	Successful Status = "successful"
	Failed     Status = "failed"
)

//InputSummary summarizes what went into a calculation.
type InputSummary struct {
	Structure  *aims.Atoms `json:"structure,omitempty"`
	XC         string      `json:"xc,omitempty"`
	Parameters ParamMap    `json:"parameters,omitempty"`
}

//OutputSummary summarizes what came out. The gap-related fields are
//pointers because not every calculation produces them (a metal, or a run
//without band analysis).
type OutputSummary struct {
	Structure     *aims.Atoms    `json:"structure,omitempty"`
	Energy        float64        `json:"energy"`
	EnergyPerAtom float64        `json:"energy_per_atom"`
	BandGap       *float64       `json:"bandgap,omitempty"`
	VBM           *float64       `json:"vbm,omitempty"`
	CBM           *float64       `json:"cbm,omitempty"`
	Forces        [][3]float64   `json:"forces,omitempty"`
	Stress        *[3][3]float64 `json:"stress,omitempty"`
}

//TaskDocument is the parsed summary of one FHI-aims run directory. It is
//what jobs hand to their successors, so everything a follow-up calculation
//might need (final structure, directory for restarts, named scalars for
//convergence checks) is in here.
type TaskDocument struct {
	DirName     string        `json:"dir_name"`
	TaskLabel   string        `json:"task_label"`
	CompletedAt string        `json:"completed_at"`
	State       Status        `json:"state"`
	Input       InputSummary  `json:"input"`
	Output      OutputSummary `json:"output"`
}

//TaskDocName is the file the parsed document is persisted to in each run
//directory.
const TaskDocName = "task_doc.json"

//TaskDocFromDirectory parses a finished run directory into a TaskDocument.
//An unsuccessful run still yields a document (with State Failed); only a
//directory we cannot make sense of at all is an error.
func TaskDocFromDirectory(dir, label string) (*TaskDocument, error) {
	outname := filepath.Join(dir, OutputFileName)
	doc := &TaskDocument{
		DirName:     dir,
		TaskLabel:   label,
		CompletedAt: time.Now().Format(time.RFC3339),
	}
	structure, err := aims.GeometryRead(filepath.Join(dir, GeometryFileName))
	if err != nil {
		return nil, errDecorate(err, "TaskDocFromDirectory")
	}
	doc.Input.Structure = structure
	if params, err := ReadParams(filepath.Join(dir, ParamsFileName)); err == nil {
		doc.Input.Parameters = params
		if xc, ok := params["xc"].(string); ok {
			doc.Input.XC = xc
		}
	}
	if NormalTermination(outname) && SCFConverged(outname) {
		doc.State = Successful
	} else {
		doc.State = Failed
		return doc, nil //nothing else worth parsing from a failed run
	}
	energy, err := Energy(outname)
	if err != nil {
		return nil, errDecorate(err, "TaskDocFromDirectory")
	}
	doc.Output.Energy = energy
	n, err := NumAtoms(outname)
	if err != nil || n == 0 {
		n = structure.Len()
	}
	doc.Output.EnergyPerAtom = energy / float64(n)
	if gap, err := BandGap(outname); err == nil {
		doc.Output.BandGap = &gap
	}
	if vbm, err := VBM(outname); err == nil {
		doc.Output.VBM = &vbm
	}
	if cbm, err := CBM(outname); err == nil {
		doc.Output.CBM = &cbm
	}
	if forces, err := Forces(outname); err == nil {
		doc.Output.Forces = forces
	}
	if stress, err := StressTensor(outname); err == nil {
		doc.Output.Stress = stress
	}
	if relaxed, err := OptimizedGeometry(dir); err == nil {
		doc.Output.Structure = relaxed
	} else {
		doc.Output.Structure = structure
	}
	return doc, nil
}

//Successful tells whether the run behind this document completed properly.
func (t *TaskDocument) Successful() bool {
	return t.State == Successful
}

//CriterionValue exposes the named scalar results of the run, for callers
//(like the convergence loop) that watch one number across calculations.
func (t *TaskDocument) CriterionValue(name string) (float64, error) {
	switch name {
	case "energy":
		return t.Output.Energy, nil
	case "energy_per_atom":
		return t.Output.EnergyPerAtom, nil
	case "bandgap":
		if t.Output.BandGap == nil {
			break
		}
		return *t.Output.BandGap, nil
	case "vbm":
		if t.Output.VBM == nil {
			break
		}
		return *t.Output.VBM, nil
	case "cbm":
		if t.Output.CBM == nil {
			break
		}
		return *t.Output.CBM, nil
	}
	return 0, Error{fmt.Sprintf("%s: %q", ErrNoCriterion, name), t.DirName, []string{"CriterionValue"}, true}
}

//Write persists the document to its run directory.
func (t *TaskDocument) Write() error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return Error{err.Error(), t.DirName, []string{"json.MarshalIndent", "TaskDocument.Write"}, true}
	}
	if err := os.WriteFile(filepath.Join(t.DirName, TaskDocName), data, 0644); err != nil {
		return Error{err.Error(), t.DirName, []string{"os.WriteFile", "TaskDocument.Write"}, true}
	}
	return nil
}
