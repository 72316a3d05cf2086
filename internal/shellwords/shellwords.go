// Package shellwords splits script lines into a command name and arguments
// using POSIX shell quoting rules. Only word splitting, quoting, and escaping
// are handled; no expansion of any kind is performed. Bytes that are not
// valid UTF-8 are copied into words unchanged.
package shellwords

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	unterminatedQuoteMessageConstant     = "unterminated quote"
	danglingBackslashMessageConstant     = "dangling backslash at end of input"
	emptyCommandMessageConstant          = "command line contains no words"
	invalidEscapeMessageTemplateConstant = "invalid escape sequence '\\%c' in double-quoted string"
)

var (
	// ErrUnterminatedQuote indicates that a single or double quote was never closed.
	ErrUnterminatedQuote = errors.New(unterminatedQuoteMessageConstant)
	// ErrDanglingBackslash indicates that input ended directly after a backslash inside double quotes.
	ErrDanglingBackslash = errors.New(danglingBackslashMessageConstant)
	// ErrEmptyCommand indicates that a line produced no words at all.
	ErrEmptyCommand = errors.New(emptyCommandMessageConstant)
)

// InvalidEscapeError reports a backslash escape that double quotes do not allow.
type InvalidEscapeError struct {
	Character rune
}

// Error describes the rejected escape sequence.
func (escapeError InvalidEscapeError) Error() string {
	return fmt.Sprintf(invalidEscapeMessageTemplateConstant, escapeError.Character)
}

// Command is a tokenized script line.
type Command struct {
	Name      string
	Arguments []string
}

// String renders the command back as a space separated line for diagnostics.
func (command Command) String() string {
	if len(command.Arguments) == 0 {
		return command.Name
	}
	return command.Name + " " + strings.Join(command.Arguments, " ")
}

type lexerState int

const (
	stateDelimiter lexerState = iota
	stateBackslash
	stateUnquoted
	stateUnquotedBackslash
	stateSingleQuoted
	stateDoubleQuoted
	stateDoubleQuotedBackslash
)

// Split tokenizes the input into words.
func Split(input string) ([]string, error) {
	lexer := &wordLexer{state: stateDelimiter}
	return lexer.parse(input)
}

// Parse tokenizes the input and separates the command name from its arguments.
func Parse(input string) (Command, error) {
	words, splitError := Split(input)
	if splitError != nil {
		return Command{}, splitError
	}
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Name: words[0], Arguments: words[1:]}, nil
}

type wordLexer struct {
	words       []string
	currentWord strings.Builder
	currentText string
	state       lexerState
}

func (lexer *wordLexer) parse(input string) ([]string, error) {
	for offset := 0; offset < len(input); {
		character, width := utf8.DecodeRuneInString(input[offset:])
		lexer.currentText = input[offset : offset+width]
		offset += width

		var transitionError error
		switch lexer.state {
		case stateDelimiter:
			lexer.state = lexer.handleDelimiter(character)
		case stateBackslash:
			lexer.state = lexer.handleBackslash(character)
		case stateUnquoted:
			lexer.state = lexer.handleUnquoted(character)
		case stateUnquotedBackslash:
			lexer.state = lexer.handleUnquotedBackslash(character)
		case stateSingleQuoted:
			lexer.state = lexer.handleSingleQuoted(character)
		case stateDoubleQuoted:
			lexer.state = lexer.handleDoubleQuoted(character)
		case stateDoubleQuotedBackslash:
			lexer.state, transitionError = lexer.handleDoubleQuotedBackslash(character)
		}
		if transitionError != nil {
			return nil, transitionError
		}
	}

	if endError := lexer.handleEndOfInput(); endError != nil {
		return nil, endError
	}

	words := lexer.words
	lexer.words = nil
	return words, nil
}

func (lexer *wordLexer) pushWord() {
	if lexer.currentWord.Len() == 0 {
		return
	}
	lexer.words = append(lexer.words, lexer.currentWord.String())
	lexer.currentWord.Reset()
}

// appendCurrent copies the source text of the character being handled, so
// invalid UTF-8 bytes survive instead of becoming U+FFFD.
func (lexer *wordLexer) appendCurrent() {
	lexer.currentWord.WriteString(lexer.currentText)
}

func isWordDelimiter(character rune) bool {
	return character == ' ' || character == '\t' || character == '\n'
}

func (lexer *wordLexer) handleDelimiter(character rune) lexerState {
	switch {
	case character == '\'':
		return stateSingleQuoted
	case character == '"':
		return stateDoubleQuoted
	case character == '\\':
		return stateBackslash
	case isWordDelimiter(character):
		return stateDelimiter
	default:
		lexer.appendCurrent()
		return stateUnquoted
	}
}

func (lexer *wordLexer) handleBackslash(character rune) lexerState {
	if character == '\n' {
		return stateDelimiter
	}
	lexer.appendCurrent()
	return stateUnquoted
}

func (lexer *wordLexer) handleUnquoted(character rune) lexerState {
	switch {
	case character == '\'':
		return stateSingleQuoted
	case character == '"':
		return stateDoubleQuoted
	case character == '\\':
		return stateUnquotedBackslash
	case isWordDelimiter(character):
		lexer.pushWord()
		return stateDelimiter
	default:
		lexer.appendCurrent()
		return stateUnquoted
	}
}

func (lexer *wordLexer) handleUnquotedBackslash(character rune) lexerState {
	if character != '\n' {
		lexer.appendCurrent()
	}
	return stateUnquoted
}

func (lexer *wordLexer) handleSingleQuoted(character rune) lexerState {
	if character == '\'' {
		return stateUnquoted
	}
	lexer.appendCurrent()
	return stateSingleQuoted
}

func (lexer *wordLexer) handleDoubleQuoted(character rune) lexerState {
	switch character {
	case '"':
		return stateUnquoted
	case '\\':
		return stateDoubleQuotedBackslash
	default:
		lexer.appendCurrent()
		return stateDoubleQuoted
	}
}

func (lexer *wordLexer) handleDoubleQuotedBackslash(character rune) (lexerState, error) {
	switch character {
	case '\n':
		return stateDoubleQuoted, nil
	case '$', '`', '"', '\\':
		lexer.appendCurrent()
		return stateDoubleQuoted, nil
	default:
		return stateDoubleQuotedBackslash, InvalidEscapeError{Character: character}
	}
}

func (lexer *wordLexer) handleEndOfInput() error {
	switch lexer.state {
	case stateSingleQuoted, stateDoubleQuoted:
		return ErrUnterminatedQuote
	case stateDoubleQuotedBackslash:
		return ErrDanglingBackslash
	case stateBackslash, stateUnquotedBackslash:
		lexer.currentWord.WriteRune('\\')
		lexer.pushWord()
		return nil
	default:
		lexer.pushWord()
		return nil
	}
}
