/*
 * errors.go, part of goaims.
 *
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
 *
 * Goaims is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.
 *
 *
 */

package aims

import "fmt"

//Decorable is the interface for errors that the packages in this library
//implement. The Decorate method allows to add and retrieve info from the
//error, without changing its type or wrapping it around something else.
//The decorate slice should contain a list of functions in the calling stack,
//plus, for each function, any relevant information, or nothing.
type Decorable interface {
	Error() string
	Decorate(string) []string
}

//Error is the general error structure of the root package. It fulfills
//aims.Decorable.
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	if err.filename == "" {
		return err.message
	}
	return fmt.Sprintf("%s: %s", err.filename, err.message)
}

//Decorate adds new information to the error. If passed an empty string it
//just returns the current decoration.
func (err Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//FileName returns the file associated to the error.
func (err Error) FileName() string { return err.filename }

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool { return err.critical }

const (
	ErrCantOpen     = "Unable to open file"
	ErrBadGeometry  = "Wrong format in geometry.in file"
	ErrNilStructure = "Nil or empty structure given"
	ErrNoLattice    = "Structure has no lattice vectors"
)
