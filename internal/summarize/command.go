package summarize

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"notetube/internal/command"
)

// Command runs a local model program that reads the transcript on stdin
// and prints the summary on stdout. The placeholders {max} and {min} in
// the argument list are replaced with the word bounds.
type Command struct {
	name   string
	args   []string
	runner command.InputRunner
	onLog  func(command.Log)
}

// NewCommand parses a whitespace separated command line.
func NewCommand(commandLine string, onLog func(command.Log)) (*Command, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("summary command is empty")
	}
	return &Command{
		name:   fields[0],
		args:   fields[1:],
		runner: &command.ExecRunner{},
		onLog:  onLog,
	}, nil
}

// Summarize runs the configured program once.
func (c *Command) Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error) {
	args := make([]string, len(c.args))
	replacer := strings.NewReplacer("{max}", strconv.Itoa(maxWords), "{min}", strconv.Itoa(minWords))
	for i, arg := range c.args {
		args[i] = replacer.Replace(arg)
	}

	result, err := c.runner.RunWithInput(ctx, text, c.name, args...)
	log := command.NewLog(c.name, args, result)
	command.Emit(c.onLog, log)
	if err != nil {
		return "", fmt.Errorf("run summary command: %w", &command.Error{Log: log, Err: err})
	}
	return result.Stdout, nil
}

// NewCommandForTests constructs a command engine with an injectable runner.
func NewCommandForTests(name string, args []string, runner command.InputRunner) *Command {
	return &Command{name: name, args: args, runner: runner}
}
