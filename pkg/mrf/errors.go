package mrf

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid engine setup. It is raised before
	// any pixel is touched.
	ErrConfiguration = errors.New("mrf: configuration error")

	// ErrData reports inputs that disagree with the configuration, such as a
	// classifier returning the wrong number of distances. Labels produced by
	// a run that failed with ErrData must be treated as undefined.
	ErrData = errors.New("mrf: data error")
)

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func dataErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}
