/*
 * handle.go, part of goaims.
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

package calc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	aims "github.com/rmera/goaims"
	log "github.com/sirupsen/logrus"
)

//Input and output file names are fixed by FHI-aims itself; only the
//directory varies per run.
const (
	ControlFileName  = "control.in"
	GeometryFileName = "geometry.in"
	OutputFileName   = "aims.out"
)

//AimsHandle runs FHI-aims calculations in a given directory. Note that the
//default command is NOT considered part of the API and can always change.
type AimsHandle struct {
	command string
	dir     string
	nCPU    int
	wait    bool
}

//NewAimsHandle builds a handle with the default settings.
func NewAimsHandle() *AimsHandle {
	O := new(AimsHandle)
	O.SetDefaults()
	return O
}

//SetDefaults takes the run command from the AIMS_COMMAND environment
//variable (which may be a full mpirun line) and half the logical CPUs.
func (O *AimsHandle) SetDefaults() {
	O.command = os.Getenv("AIMS_COMMAND")
	O.nCPU = runtime.NumCPU() / 2
	O.wait = true
}

//SetCommand sets the command used to invoke FHI-aims.
func (O *AimsHandle) SetCommand(name string) {
	O.command = name
}

//Command returns the command the handle will run.
func (O *AimsHandle) Command() string {
	return O.command
}

//SetDir sets the directory in which inputs are written and the program run.
func (O *AimsHandle) SetDir(dir string) {
	O.dir = dir
}

//SetnCPU sets the number of MPI tasks used when the command itself doesn't
//already say (i.e. when it is a bare binary path).
func (O *AimsHandle) SetnCPU(cpu int) {
	O.nCPU = cpu
}

//SetWait sets whether Run blocks until FHI-aims exits. Not waiting works
//only on unix-compatible systems, as it uses sh and nohup, and leaves the
//output to be collected by the caller.
func (O *AimsHandle) SetWait(wait bool) {
	O.wait = wait
}

//BuildInput writes control.in, geometry.in and the persisted parameters
//into the handle's directory.
func (O *AimsHandle) BuildInput(mol *aims.Atoms, Q *Calc) error {
	if mol == nil || Q == nil {
		return Error{ErrCantInput, O.dir, []string{"BuildInput"}, true}
	}
	if O.dir == "" {
		O.dir = "."
	}
	if err := aims.GeometryWrite(filepath.Join(O.dir, GeometryFileName), mol); err != nil {
		return errDecorate(err, "BuildInput")
	}
	if err := ControlWrite(filepath.Join(O.dir, ControlFileName), Q.Params, mol, Q.SpeciesDir); err != nil {
		return errDecorate(err, "BuildInput")
	}
	if err := WriteParams(filepath.Join(O.dir, ParamsFileName), Q.Params); err != nil {
		return errDecorate(err, "BuildInput")
	}
	return nil
}

//Run runs FHI-aims on the previously built input, with stdout and stderr
//going to aims.out. The context cancels the run; a canceled or failed
//process is an error, but an unconverged calculation is not (that is for
//the output parsing to notice).
func (O *AimsHandle) Run(ctx context.Context) error {
	if O.command == "" {
		return Error{ErrNotRunning + ": no AIMS_COMMAND set", O.dir, []string{"Run"}, true}
	}
	com := O.launchLine()
	log.Infof("Running command: %s", com)
	if !O.wait {
		command := exec.Command("sh", "-c", "nohup "+com+" &")
		if err := command.Start(); err != nil {
			return Error{fmt.Sprintf("%s: %s", ErrNotRunning, err.Error()), O.dir, []string{"exec.Start", "Run"}, true}
		}
		return nil
	}
	command := exec.CommandContext(ctx, "sh", "-c", com)
	err := command.Run()
	if err != nil {
		return Error{fmt.Sprintf("%s: %s", ErrNotRunning, err.Error()), O.dir, []string{"exec.Run", "Run"}, true}
	}
	return nil
}

//launchLine assembles the sh -c line for the current settings. A bare
//binary path gets mpirun in front of it with the handle's task count; a
//command that already contains its own launcher (anything with spaces) is
//taken as given.
func (O *AimsHandle) launchLine() string {
	run := O.command
	if O.nCPU > 1 && !strings.ContainsAny(run, " \t") {
		run = fmt.Sprintf("mpirun -np %d %s", O.nCPU, shellQuote(run))
	}
	return fmt.Sprintf("cd %s && %s > %s 2>&1", shellQuote(O.dir), run, OutputFileName)
}

//OutputName returns the path of the aims.out this handle produces.
func (O *AimsHandle) OutputName() string {
	return filepath.Join(O.dir, OutputFileName)
}

//Energy gets the total energy (eV) of the last run made with this handle.
//Returns ErrProbableProblem together with the energy if there is an energy
//but the calculation didn't end properly.
func (O *AimsHandle) Energy() (float64, error) {
	return Energy(O.OutputName())
}

//OptimizedGeometry reads the relaxed structure of the last run.
func (O *AimsHandle) OptimizedGeometry() (*aims.Atoms, error) {
	return OptimizedGeometry(O.dir)
}

//shellQuote wraps a string in single quotes for the sh -c line, escaping
//any single quotes it contains.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
