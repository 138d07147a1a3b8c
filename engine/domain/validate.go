package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQuestionLength is the ceiling on question length, in characters.
	MaxQuestionLength = 1000
	// MaxBatchSize is the number of questions accepted by one batch call.
	MaxBatchSize = 10
)

// ValidateQuestion rejects blank questions and questions over MaxQuestionLength.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return NewValidationError("question", question, ErrEmptyQuestion)
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionLength {
		return NewValidationError("question", fmt.Sprintf("%d chars", n), ErrQuestionTooLong)
	}
	return nil
}

// ValidateBatch checks the batch size and every question in it.
func ValidateBatch(questions []string) error {
	if len(questions) == 0 {
		return NewValidationError("questions", "[]", ErrEmptyBatch)
	}
	if len(questions) > MaxBatchSize {
		return NewValidationError("questions", fmt.Sprintf("%d items", len(questions)), ErrBatchTooLarge)
	}
	for i, q := range questions {
		if err := ValidateQuestion(q); err != nil {
			return fmt.Errorf("questions[%d]: %w", i, err)
		}
	}
	return nil
}
