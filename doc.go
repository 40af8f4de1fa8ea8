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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*Package aims is the root package of the goaims library, a toolkit for
orchestrating FHI-aims density-functional calculations from Go.

It provides the structure object and geometry.in reading/writing, k-point
grid and band-path generation, and the run-directory artifact helpers
(restart-file copying, output archiving) that the higher level packages
build on.

	**goaims packages**

    aims (this package): structures, geometry.in IO, k-points, artifacts.

    calc: builds FHI-aims inputs (control.in + geometry.in), runs the
	program and parses aims.out into a task document.

    flow: a minimal job-graph contract (jobs, responses, dynamically
	appended continuations) plus a sequential local runner.

    jobs: job makers for single calculations (static, relaxation, band
	structure, GW, phonon displacements) and the self-replicating
	convergence loop.

    flows: multi-step workflows chaining the makers (double relaxation,
	GW with automatic convergence, phonon displacement campaigns).

    bandplot: band-structure plots from parsed band files.

The actual physics happens inside the FHI-aims binary; this library only
templates its inputs, shells out and reads its text output back.
*/
package aims
