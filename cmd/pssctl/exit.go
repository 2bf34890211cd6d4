package main

import "github.com/trungdtbk/pss1830/pkg/util"

// Process exit codes, one per error kind
const (
	exitOK           = 0
	exitGeneric      = 1
	exitValidation   = 2
	exitPrecondition = 3
	exitUnsatisfied  = 4
	exitTransport    = 5
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch util.KindOf(err) {
	case util.KindValidation, util.KindMalformed:
		return exitValidation
	case util.KindPrecondition:
		return exitPrecondition
	case util.KindUnsatisfied:
		return exitUnsatisfied
	case util.KindTransport:
		return exitTransport
	}
	return exitGeneric
}
