/*
 * doc.go, part of goaims.
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

/*Package calc sets up, runs and parses FHI-aims calculations.

A calculation is described by a Calc (the control.in parameters, the band
path and the species defaults location), built from a set generator plus the
parameters inherited from a previous run directory and the user's overrides.
The AimsHandle writes the input files, shells out to the FHI-aims binary and
the parsing functions read the plain-text aims.out back into numbers. The
TaskDocument summarizes one finished run directory.

To use this package you need the FHI-aims program, which must be obtained
from fhi-aims.org. Please cite the FHI-aims references if you use it.
*/
package calc
