package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
	"github.com/Sumatoshi-tech/sitterview/pkg/textutil"
)

// ErrNoGrammar indicates that no grammar was given, detected or configured.
var ErrNoGrammar = errors.New("no grammar: pass --language or set editor.grammar")

// readInput reads path, or stdin for "-". The label names the input in
// messages. Binary and non-UTF-8 content is rejected.
func readInput(path string, stdin io.Reader) (text, label string, err error) {
	var data []byte

	if path == "-" {
		label = "stdin"
		data, err = io.ReadAll(stdin)
	} else {
		label = path
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", label, err)
	}

	err = textutil.CheckText(data)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", label, err)
	}

	return string(data), label, nil
}

// resolveGrammar picks the explicit language, then the grammar detected from
// path and text, then fallback.
func resolveGrammar(language, path, text, fallback string) (string, error) {
	if language != "" {
		return language, nil
	}

	if path != "" && path != "-" {
		detected := sitter.DetectLanguage(path, []byte(text))
		if detected != "" {
			return detected, nil
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", ErrNoGrammar
}
