package dictload

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gravwell/raddict/dicterr"
	"github.com/gravwell/raddict/dicttoken"
)

// loadFileInto reads path line by line, driving the directive engine
// against state, and recurses into $INCLUDE/$INCLUDE- targets. It is the
// single entrypoint every Loader.Load/LoadProtocol/$INCLUDE path funnels
// through, so includeDepth and the context stack are threaded unchanged
// across file boundaries (spec.md §4.4 $INCLUDE: "recursively invokes the
// loader on path ... the context stack ... [is] threaded unchanged").
func (l *Loader) loadFileInto(state *loadState, path string) error {
	state.includeDepth++
	defer func() { state.includeDepth-- }()
	if state.includeDepth > MaxIncludeDepth {
		return dicterr.New(path, 0, dicterr.Resource, dicterr.ErrIncludeTooDeep)
	}

	if err := l.checkFileSecurity(path); err != nil {
		return dicterr.Annotate(err, path, 0, dicterr.IO, "while opening "+path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	outerFile, outerLine := state.curFile, state.curLine
	state.curFile = path
	defer func() { state.curFile, state.curLine = outerFile, outerLine }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, dicttoken.MaxLineLength), bufio.MaxScanTokenSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		state.curLine = lineNo
		line := sc.Bytes()
		if len(line) > dicttoken.MaxLineLength {
			if l.Options.StrictLineLength {
				return dicterr.New(path, lineNo, dicterr.Syntax, errors.New("line exceeds maximum length"))
			}
			line = line[:dicttoken.MaxLineLength]
		}
		fields := dicttoken.Tokenize(line)
		if len(fields) == 0 {
			continue
		}
		if err := l.dispatch(state, fields); err != nil {
			return dicterr.Annotate(err, path, lineNo, dicterr.Syntax, fmt.Sprintf("%s[%d]", path, lineNo))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return nil
}

// resolveIncludePath resolves path relative to curFile's directory, unless
// path is already absolute (spec.md §4.4 "$INCLUDE path ... resolving
// relative to the current file's directory").
func resolveIncludePath(curFile, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(curFile), path)
}

// processInclude implements $INCLUDE/$INCLUDE-: it records the stack depth
// on entry and requires it be identical on return (spec.md §4.4: "a file
// that opens a BEGIN without END is an error"), and downgrades a
// not-found error to silent success for the optional form.
func (l *Loader) processInclude(state *loadState, optional bool, rawPath string) error {
	path := resolveIncludePath(state.curFile, rawPath)
	depthBefore := state.ctx.depth()

	err := l.loadFileInto(state, path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if state.ctx.depth() != depthBefore {
		return dicterr.New(path, 0, dicterr.Context,
			fmt.Errorf("included file left the context stack unbalanced (was %d, now %d)", depthBefore, state.ctx.depth()))
	}
	return nil
}
