package main

import (
	"errors"
	"io"
	"os"

	"sigmap/pkg/casagrande"
	"sigmap/pkg/interpolation"
)

// Exit codes
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitData         = 3
	exitConstruction = 4
)

// usageError marks bad flags, configuration or parameters
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// dataError marks test data that could not be read or processed
type dataError struct{ err error }

func (e dataError) Error() string { return e.err.Error() }
func (e dataError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		newPrinter(stderr).Error(err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var (
		usage        usageError
		data         dataError
		input        *casagrande.InvalidInputError
		invalidRange *interpolation.InvalidRangeError
		insufficient *interpolation.InsufficientDataError
		invalidData  *interpolation.InvalidDataError
		noPeak       *casagrande.NoCurvatureMaximumError
		degenerate   *casagrande.DegenerateGeometryError
		nonPhysical  *casagrande.NonPhysicalResultError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage):
		return exitUsage
	case errors.As(err, &data):
		return exitData
	case errors.As(err, &noPeak), errors.As(err, &degenerate), errors.As(err, &nonPhysical):
		return exitConstruction
	case errors.As(err, &input), errors.As(err, &invalidRange):
		return exitUsage
	case errors.As(err, &insufficient), errors.As(err, &invalidData):
		return exitData
	}
	return exitFailure
}
