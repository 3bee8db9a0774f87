package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message with suggestions and help commands
//
// Example output:
//
//	❌ UNKNOWN ENTITY: persn
//	   Cannot find entity 'persn'.
//
//	   Did you mean: person?
//
//	   → See all entities: recordkit entities
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	// Determine colors and symbol based on level
	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelError:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	}

	// Disable colors if requested
	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	// Header line with context
	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	// Problem description with indentation
	if opts.Problem != "" && opts.Context != "" {
		bodyColor.Fprintf(&b, "   %s\n", opts.Problem)
	}

	// Consequence (if provided)
	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	// Suggestions
	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	// Help commands
	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// EntityNotFoundError creates a standardized unknown entity error
func EntityNotFoundError(entity string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "UNKNOWN ENTITY",
		Problem:     fmt.Sprintf("Cannot find entity '%s'.", entity),
		Suggestions: FindSimilar(entity, known, nil),
		HelpCommands: []string{
			"See all entities: recordkit entities",
		},
		NoColor: noColor,
	})
}

// RecordError describes a failed record operation on entity. The context
// names the failure; fatal conditions say so.
func RecordError(entity string, id string, err error, noColor bool) string {
	opts := ErrorOptions{
		Level:   ErrorLevelError,
		Context: "RECORD OPERATION FAILED",
		Problem: err.Error(),
		NoColor: noColor,
	}

	switch {
	case crud.IsNotFound(err):
		opts.Context = "RECORD NOT FOUND"
		opts.Problem = fmt.Sprintf("No %s record with id %s.", entity, id)
		opts.HelpCommands = []string{
			fmt.Sprintf("Search instead: recordkit search %s", entity),
		}
	case crud.IsRemoved(err):
		opts.Context = "RECORD REMOVED"
	case crud.IsNoRowsAffected(err):
		opts.Context = "NOTHING WRITTEN"
		opts.Consequence = "The store reported no affected rows; the record may have been removed."
	case crud.IsUniqueViolation(err), crud.IsForeignKeyViolation(err),
		errors.Is(err, crud.ErrNotNullViolation), errors.Is(err, crud.ErrCheckViolation):
		opts.Context = "CONSTRAINT VIOLATED"
		opts.Consequence = "No changes were written."
	case errors.Is(err, datasource.ErrUnknownDatasource):
		opts.Context = "UNKNOWN DATASOURCE"
		opts.HelpCommands = []string{"View config: cat recordkit.yml"}
	}

	if fault.IsFatal(err) {
		opts.Context = "FATAL: " + opts.Context
	}
	return FormatError(opts)
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "CONFIGURATION ERROR",
		Problem: message,
		HelpCommands: []string{
			"View config: cat recordkit.yml",
			"Get help: recordkit --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelWarning,
		Problem: message,
		NoColor: noColor,
	})
}
