/*
 * files.go, part of goaims.
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

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

//RestartPatterns are the files a new calculation wants next to its inputs to
//restart from a previous run: the ELSI density matrices, the relaxation
//geometry and the Hessian.
var RestartPatterns = []string{"*.csc", "geometry.in.next_step", "hessian.aims"}

//CopyOutputs copies the files matching the given glob patterns from a
//previous run directory into dst, transparently decompressing .gz and .zst
//copies if the plain file is gone (archived runs keep only the compressed
//version). Missing files are not an error; a restart is best-effort.
func CopyOutputs(src, dst string, patterns []string) error {
	for _, pattern := range patterns {
		for _, ext := range []string{"", ".gz", ".zst"} {
			matches, err := filepath.Glob(filepath.Join(src, pattern+ext))
			if err != nil {
				return Error{err.Error(), pattern, []string{"filepath.Glob", "CopyOutputs"}, true}
			}
			for _, m := range matches {
				name := strings.TrimSuffix(filepath.Base(m), ext)
				//the plain version, if we already copied it, wins
				target := filepath.Join(dst, name)
				if _, err := os.Stat(target); err == nil {
					continue
				}
				if err := copyDecompressed(m, target, ext); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

//copyDecompressed copies src to dst, decoding it first when ext marks it as
//compressed.
func copyDecompressed(src, dst, ext string) error {
	in, err := os.Open(src)
	if err != nil {
		return Error{ErrCantOpen, src, []string{"os.Open", "copyDecompressed"}, true}
	}
	defer in.Close()
	var r io.Reader = in
	switch ext {
	case ".gz":
		gz, err := gzip.NewReader(in)
		if err != nil {
			return Error{err.Error(), src, []string{"gzip.NewReader", "copyDecompressed"}, true}
		}
		defer gz.Close()
		r = gz
	case ".zst":
		zr, err := zstd.NewReader(in)
		if err != nil {
			return Error{err.Error(), src, []string{"zstd.NewReader", "copyDecompressed"}, true}
		}
		defer zr.Close()
		r = zr
	}
	out, err := os.Create(dst)
	if err != nil {
		return Error{ErrCantOpen, dst, []string{"os.Create", "copyDecompressed"}, true}
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return Error{err.Error(), dst, []string{"io.Copy", "copyDecompressed"}, true}
	}
	return nil
}

//ArchiveOutputs compresses the bulky output files of a finished run with
//zstd, removing the originals. Input files and the parsed documents are left
//alone so the directory stays readable. Files already compressed are
//skipped.
func ArchiveOutputs(dir string, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = []string{"aims.out", "*.csc", "band*.out"}
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return Error{err.Error(), pattern, []string{"filepath.Glob", "ArchiveOutputs"}, true}
		}
		for _, m := range matches {
			if strings.HasSuffix(m, ".zst") || strings.HasSuffix(m, ".gz") {
				continue
			}
			if err := zstdFile(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func zstdFile(name string) error {
	in, err := os.Open(name)
	if err != nil {
		return Error{ErrCantOpen, name, []string{"os.Open", "zstdFile"}, true}
	}
	out, err := os.Create(name + ".zst")
	if err != nil {
		in.Close()
		return Error{ErrCantOpen, name + ".zst", []string{"os.Create", "zstdFile"}, true}
	}
	defer out.Close()
	w, err := zstd.NewWriter(out)
	if err != nil {
		in.Close()
		return Error{err.Error(), name, []string{"zstd.NewWriter", "zstdFile"}, true}
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		in.Close()
		return Error{err.Error(), name, []string{"io.Copy", "zstdFile"}, true}
	}
	if err := w.Close(); err != nil {
		in.Close()
		return Error{err.Error(), name, []string{"zstd.Writer.Close", "zstdFile"}, true}
	}
	in.Close()
	return os.Remove(name)
}
