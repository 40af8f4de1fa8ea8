/*
 * params_test.go, part of goaims.
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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	aims "github.com/rmera/goaims"
)

func silicon(Te *testing.T) *aims.Atoms {
	mol, err := aims.GeometryRead("test/geometry.in")
	if err != nil {
		Te.Fatal(err)
	}
	return mol
}

func TestBuildParametersDefaults(Te *testing.T) {
	mol := silicon(Te)
	params, err := BuildParameters(StaticSet(), mol, "", nil, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if params["xc"] != "pbe" {
		Te.Errorf("Expected the pbe default, got %v", params["xc"])
	}
	grid, ok := params["k_grid"].([]int)
	if !ok {
		Te.Fatalf("A periodic structure should get a k_grid, got %v", params["k_grid"])
	}
	fmt.Println("Default k-grid for Si:", grid)
	for _, n := range grid {
		if n < 1 {
			Te.Errorf("Nonsense k-grid: %v", grid)
		}
	}
}

func TestBuildParametersPrecedence(Te *testing.T) {
	mol := silicon(Te)
	//a previous run with things that must and must not be inherited
	prevdir := Te.TempDir()
	prev := ParamMap{
		"xc":             "pw-lda",
		"spin":           "none",
		"relax_geometry": "trm 1e-3",
		"k_grid":         []any{4.0, 4.0, 4.0}, //as JSON would give it back
	}
	if err := WriteParams(filepath.Join(prevdir, ParamsFileName), prev); err != nil {
		Te.Fatal(err)
	}
	user := ParamMap{"xc": "pbesol"}
	params, err := BuildParameters(StaticSet(), mol, prevdir, user, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if params["xc"] != "pbesol" {
		Te.Errorf("User parameters should win, got xc = %v", params["xc"])
	}
	if params["spin"] != "none" {
		Te.Error("The spin setting should have been inherited")
	}
	if _, ok := params["relax_geometry"]; ok {
		Te.Error("relax_geometry must not leak from a relaxation into a static run")
	}
	if _, ok := params["k_grid"]; !ok {
		Te.Error("The inherited k_grid went missing")
	}
}

func TestBuildParametersNonPeriodic(Te *testing.T) {
	mol, err := aims.NewAtoms([]string{"O", "H", "H"}, [][3]float64{
		{0, 0, 0}, {0.757, 0.586, 0}, {-0.757, 0.586, 0}})
	if err != nil {
		Te.Fatal(err)
	}
	params, err := BuildParameters(StaticSet(), mol, "", ParamMap{"k_grid": []int{4, 4, 4}}, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if _, ok := params["k_grid"]; ok {
		Te.Error("A molecule must not carry a k_grid")
	}
}

func TestRelaxSet(Te *testing.T) {
	mol := silicon(Te)
	params, err := BuildParameters(RelaxSet(true), mol, "", nil, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if params["relax_geometry"] != "trm 1e-3" {
		Te.Errorf("Wrong relax_geometry: %v", params["relax_geometry"])
	}
	if params["relax_unit_cell"] != "full" {
		Te.Errorf("Full relaxation of a periodic structure should relax the cell, got %v", params["relax_unit_cell"])
	}
	params, err = BuildParameters(RelaxSet(false), mol, "", nil, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if _, ok := params["relax_unit_cell"]; ok {
		Te.Error("A fixed-cell relaxation must not relax the cell")
	}
}

func TestControlWrite(Te *testing.T) {
	mol := silicon(Te)
	params, err := BuildParameters(BandStructureSet(20), mol, "", nil, 0)
	if err != nil {
		Te.Fatal(err)
	}
	name := filepath.Join(Te.TempDir(), ControlFileName)
	if err := ControlWrite(name, params, mol, "test/species"); err != nil {
		Te.Fatal(err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		Te.Fatal(err)
	}
	control := string(data)
	fmt.Println(control)
	for _, want := range []string{"xc", "k_grid", "output band", "species        Si"} {
		if !strings.Contains(control, want) {
			Te.Errorf("control.in misses %q", want)
		}
	}
	if strings.Contains(control, "bands ") {
		Te.Error("The reserved bands key leaked into control.in")
	}
	//the species block goes last
	if strings.Index(control, "species") < strings.Index(control, "output band") {
		Te.Error("Species defaults should come after the band output lines")
	}
}

func TestFormatValue(Te *testing.T) {
	for _, c := range []struct {
		in   any
		want string
	}{
		{true, ".true."},
		{false, ".false."},
		{[]int{6, 6, 6}, "6 6 6"},
		{[]float64{4.0, 4.0, 4.0}, "4 4 4"},
		{"atomic_zora scalar", "atomic_zora scalar"},
		{[]any{3.0, 3.0, 3.0}, "3 3 3"},
		{0.05, "0.05"},
	} {
		got, err := formatValue(c.in)
		if err != nil {
			Te.Fatal(err)
		}
		if got != c.want {
			Te.Errorf("formatValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
	if _, err := formatValue(struct{}{}); err == nil {
		Te.Error("A struct value should be rejected")
	}
}

func TestUserParamsFromYAML(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "params.yaml")
	recipe := "xc: pbe0\nspin: collinear\nk_grid: [8, 8, 8]\n"
	if err := os.WriteFile(name, []byte(recipe), 0644); err != nil {
		Te.Fatal(err)
	}
	p, err := UserParamsFromYAML(name)
	if err != nil {
		Te.Fatal(err)
	}
	if p["xc"] != "pbe0" || p["spin"] != "collinear" {
		Te.Errorf("Bad YAML recipe: %v", p)
	}
	v, err := formatValue(p["k_grid"])
	if err != nil || v != "8 8 8" {
		Te.Errorf("The YAML k_grid should format as a grid, got %q (%v)", v, err)
	}
}
