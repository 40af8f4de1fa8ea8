/*
 * errors.go, part of goaims.
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

	"github.com/rmera/goaims"
)

//Error is the general structure for FHI-aims calculation errors. It
//fulfills aims.Decorable.
type Error struct {
	message   string
	inputname string //the run this error belongs to
	deco      []string
	critical  bool
}

func (err Error) Error() string {
	return fmt.Sprintf("FHI-aims run %s error: %s", err.inputname, err.message)
}

//Decorate adds new information to the error and returns the current
//decoration slice.
func (err Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool { return err.critical }

const (
	ErrNotRunning      = "Couldn't run the FHI-aims binary"
	ErrCantInput       = "Can't build the input files"
	ErrNoEnergy        = "Output does not contain the energy"
	ErrNoGap           = "Output does not contain the HOMO-LUMO gap"
	ErrNoForces        = "Output does not contain forces"
	ErrNoStress        = "Output does not contain the stress tensor"
	ErrNoGeometry      = "Couldn't read the geometry"
	ErrNoOutput        = "Couldn't open the output file"
	ErrProbableProblem = "Probable problem in calculation"
	ErrNoCriterion     = "Requested criterion is not in the run results"
	ErrNoSpecies       = "Species defaults not found"
)

//errDecorate asserts that the error implements aims.Decorable and decorates
//it with the caller's name before returning it. Non-Decorable errors are
//returned unchanged.
func errDecorate(err error, caller string) error {
	err2, ok := err.(aims.Decorable)
	if !ok {
		return err
	}
	err2.Decorate(caller)
	return err2
}
