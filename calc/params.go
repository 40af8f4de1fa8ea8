/*
 * params.go, part of goaims.
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

	aims "github.com/rmera/goaims"
	yaml "gopkg.in/yaml.v3"
)

//ParamsFileName is the name under which the resolved control.in parameters
//are persisted in every run directory, so a later calculation can inherit
//them.
const ParamsFileName = "parameters.json"

//ParamMap holds control.in keywords and their values. Values may be
//strings, bools, numbers, or slices of numbers; the control.in writer knows
//how to format each. The reserved key "bands" holds already-formatted
//"band ..." control lines.
type ParamMap map[string]any

//Copy returns a shallow copy of the map. Parameter values are never mutated
//in place, so this is enough to keep generators from stepping on each other.
func (p ParamMap) Copy() ParamMap {
	n := make(ParamMap, len(p))
	for k, v := range p {
		n[k] = v
	}
	return n
}

//Calc describes one FHI-aims calculation: the resolved parameters and
//where the species defaults live.
type Calc struct {
	Params     ParamMap
	SpeciesDir string
}

//The keywords that must never be inherited from a previous run: a static
//calculation restarted from a relaxation must not relax again, and band
//output belongs to the generator that asked for it.
var dropOnInherit = []string{"relax_geometry", "relax_unit_cell", "bands"}

//A SetGenerator produces the parameter updates for one calculation type
//(static, relaxation, band structure, GW...).
type SetGenerator struct {
	CalcType string
	Updates  func(mol *aims.Atoms, prev ParamMap) (ParamMap, error)
}

//StaticSet returns the generator for a single-point SCF calculation, which
//needs no updates beyond the defaults.
func StaticSet() SetGenerator {
	return SetGenerator{
		CalcType: "static",
		Updates: func(mol *aims.Atoms, prev ParamMap) (ParamMap, error) {
			return ParamMap{}, nil
		},
	}
}

//RelaxSet returns the generator for a geometry relaxation. With relaxCell
//set, the unit cell of a periodic structure is relaxed too.
func RelaxSet(relaxCell bool) SetGenerator {
	return SetGenerator{
		CalcType: "relaxation",
		Updates: func(mol *aims.Atoms, prev ParamMap) (ParamMap, error) {
			up := ParamMap{"relax_geometry": "trm 1e-3"}
			if relaxCell && mol.Periodic() {
				up["relax_unit_cell"] = "full"
			}
			return up, nil
		},
	}
}

//BandStructureSet returns the generator for a band-structure calculation:
//an SCF run plus band output along the lattice's standard path, with
//density points per Angstrom^-1 of path.
func BandStructureSet(density float64) SetGenerator {
	return SetGenerator{
		CalcType: "bands",
		Updates: func(mol *aims.Atoms, prev ParamMap) (ParamMap, error) {
			lines, err := bandLines(mol, density)
			if err != nil {
				return nil, err
			}
			return ParamMap{"bands": lines}, nil
		},
	}
}

//GWSet returns the generator for a periodic GW band-structure calculation
//on top of a converged DFT ground state.
func GWSet(density float64) SetGenerator {
	return SetGenerator{
		CalcType: "GW",
		Updates: func(mol *aims.Atoms, prev ParamMap) (ParamMap, error) {
			up := ParamMap{
				"qpe_calc":     "gw_expt",
				"anacon_type":  "two-pole",
				"empty_states": 1000,
			}
			if mol.Periodic() {
				lines, err := bandLines(mol, density)
				if err != nil {
					return nil, err
				}
				up["bands"] = lines
			}
			return up, nil
		},
	}
}

func bandLines(mol *aims.Atoms, density float64) ([]string, error) {
	segments, err := aims.BandPath(mol, density)
	if err != nil {
		return nil, errDecorate(err, "bandLines")
	}
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, s.ControlLine())
	}
	return lines, nil
}

//BuildParameters resolves the full parameter set for a calculation. The
//precedence, lowest to highest: bare-bones defaults (FHI-aims recommends
//running with their own defaults), parameters inherited from prevDir,
//the generator's updates, the user's parameters. A periodic structure with
//no k_grid gets one from the k-point density; a non-periodic one loses any
//inherited k_grid.
func BuildParameters(gen SetGenerator, mol *aims.Atoms, prevDir string, user ParamMap, kdensity float64) (ParamMap, error) {
	if mol == nil || mol.Len() == 0 {
		return nil, Error{ErrCantInput, gen.CalcType, []string{"BuildParameters"}, true}
	}
	params := ParamMap{
		"xc":           "pbe",
		"relativistic": "atomic_zora scalar",
	}
	if prevDir != "" {
		prev, err := ReadParams(filepath.Join(prevDir, ParamsFileName))
		if err == nil { //a previous dir without parameters is fine, we just start fresh
			for _, k := range dropOnInherit {
				delete(prev, k)
			}
			for k, v := range prev {
				params[k] = v
			}
		}
	}
	updates, err := gen.Updates(mol, params.Copy())
	if err != nil {
		return nil, errDecorate(err, "BuildParameters")
	}
	for k, v := range updates {
		params[k] = v
	}
	for k, v := range user {
		params[k] = v
	}
	if mol.Periodic() {
		if _, ok := params["k_grid"]; !ok {
			if kdensity <= 0 {
				kdensity = 5.0
			}
			grid, err := aims.KGridForDensity(mol, kdensity, true)
			if err != nil {
				return nil, errDecorate(err, "BuildParameters")
			}
			params["k_grid"] = []int{grid[0], grid[1], grid[2]}
		}
	} else {
		delete(params, "k_grid")
	}
	return params, nil
}

//ReadParams reads a persisted parameters.json file.
func ReadParams(name string) (ParamMap, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"os.ReadFile", "ReadParams"}, true}
	}
	var p ParamMap
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, Error{err.Error(), name, []string{"json.Unmarshal", "ReadParams"}, true}
	}
	return p, nil
}

//WriteParams persists the resolved parameters to a run directory.
func WriteParams(name string, p ParamMap) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return Error{err.Error(), name, []string{"json.MarshalIndent", "WriteParams"}, true}
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return Error{err.Error(), name, []string{"os.WriteFile", "WriteParams"}, true}
	}
	return nil
}

//UserParamsFromYAML loads user parameters from a YAML file, the format in
//which calculation recipes are usually kept around.
func UserParamsFromYAML(name string) (ParamMap, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"os.ReadFile", "UserParamsFromYAML"}, true}
	}
	var p ParamMap
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, Error{fmt.Sprintf("bad YAML: %v", err), name, []string{"yaml.Unmarshal", "UserParamsFromYAML"}, true}
	}
	return p, nil
}
