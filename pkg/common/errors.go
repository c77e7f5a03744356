package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCollector gathers the errors of a batch in which one failing item must not stop the rest.
type ErrorCollector struct {
	errs []error
}

func (c *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}
	c.errs = append(c.errs, err)
}

func (c *ErrorCollector) AddNewf(format string, args ...interface{}) {
	c.Add(fmt.Errorf(format, args...))
}

func (c *ErrorCollector) HasErrors() bool {
	return len(c.errs) > 0
}

func (c *ErrorCollector) Errors() []error {
	return c.errs
}

// Combine returns nil when nothing was collected.
func (c *ErrorCollector) Combine() error {
	if c.HasErrors() {
		return errors.New(c.String())
	}
	return nil
}

func (c *ErrorCollector) String() string {
	msgs := make([]string, 0, len(c.errs))
	for _, err := range c.errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
