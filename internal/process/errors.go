package process

import "codeberg.org/mutker/thermalctl/internal/errors"

const (
	ErrListProcesses = errors.ErrorCode("process_list_failed")
	ErrSetPriority   = errors.ErrorCode("process_set_priority_failed")
	ErrSetAffinity   = errors.ErrorCode("process_set_affinity_failed")
	ErrTerminate     = errors.ErrorCode("process_terminate_failed")
	ErrReclaim       = errors.ErrorCode("process_reclaim_failed")
)
