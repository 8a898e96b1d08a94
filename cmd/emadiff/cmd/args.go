package cmd

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// argParser converts positional arguments, keeping the first failure
type argParser struct {
	args []string
	err  error
}

func (p *argParser) float(i int, name string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.args[i], 64)
	if err != nil {
		p.err = errors.Wrapf(err, "argument %s", name)
	}
	return v
}

func (p *argParser) int(i int, name string) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(p.args[i])
	if err != nil {
		p.err = errors.Wrapf(err, "argument %s", name)
	}
	return v
}

func (p *argParser) string(i int) string {
	return p.args[i]
}
