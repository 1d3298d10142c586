package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Screen is one screen declaration from a bundle: its event handlers as
// source text, keyed by event name.
type Screen struct {
	Name     string
	Handlers map[string]string
}

// Bundle is a loaded CUE screen bundle.
type Bundle struct {
	Screens   []Screen
	FileCount int
}

// LoadError is a bundle loading failure with an optional CUE position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadBundle loads a CUE screen bundle from a directory. Structural
// problems are collected per screen so one bad handler does not hide the
// rest.
func LoadBundle(dir string) (*Bundle, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound,
			Message: fmt.Sprintf("bundle directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound,
			Message: fmt.Sprintf("error accessing bundle directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound,
			Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric,
			Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles,
			Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed,
			Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed,
			Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed,
			Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	bundle := &Bundle{FileCount: len(cueFiles)}
	var errs []error

	screensVal := value.LookupPath(cue.ParsePath("screens"))
	if !screensVal.Exists() {
		return bundle, []error{&LoadError{Code: ErrCodeBuildFailed,
			Message: "bundle declares no screens"}}
	}

	iter, iterErr := screensVal.Fields()
	if iterErr != nil {
		return bundle, []error{&LoadError{Code: ErrCodeBuildFailed,
			Message: fmt.Sprintf("iterating screens: %v", iterErr)}}
	}
	for iter.Next() {
		screen, screenErrs := decodeScreen(iter.Label(), iter.Value())
		errs = append(errs, screenErrs...)
		if screen != nil {
			bundle.Screens = append(bundle.Screens, *screen)
		}
	}

	// Stable order regardless of file layout.
	sort.Slice(bundle.Screens, func(i, j int) bool {
		return bundle.Screens[i].Name < bundle.Screens[j].Name
	})

	if len(bundle.Screens) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeBuildFailed,
			Message: "bundle declares no screens"})
	}
	return bundle, errs
}

func decodeScreen(name string, v cue.Value) (*Screen, []error) {
	screen := &Screen{Name: name, Handlers: map[string]string{}}
	var errs []error

	handlersVal := v.LookupPath(cue.ParsePath("handlers"))
	if !handlersVal.Exists() {
		return screen, nil
	}
	iter, err := handlersVal.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed,
			Message: fmt.Sprintf("screen %s: iterating handlers: %v", name, err),
			Pos:     handlersVal.Pos()}}
	}
	for iter.Next() {
		src, err := iter.Value().String()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBuildFailed,
				Message: fmt.Sprintf("screen %s: handler %s must be a string: %v",
					name, iter.Label(), err),
				Pos: iter.Value().Pos()})
			continue
		}
		screen.Handlers[iter.Label()] = src
	}
	return screen, errs
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
