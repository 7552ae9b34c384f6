package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/repository"
)

const (
	teacherCodePrefix      = "TCH"
	teacherCodeRandomChars = 5
	teacherCodeAttempts    = 10
)

// generateTeacherCode генерирует уникальный код учителя вида TCHXXXXX
func generateTeacherCode(ctx context.Context, teachers repository.TeacherRepository) (string, error) {
	for i := 0; i < teacherCodeAttempts; i++ {
		// 5 случайных байт дают 8 символов base32, берём первые 5
		bytes := make([]byte, 5)
		if _, err := rand.Read(bytes); err != nil {
			return "", fmt.Errorf("generate random bytes: %w", err)
		}

		code := base32.StdEncoding.EncodeToString(bytes)
		code = strings.TrimRight(code, "=")
		code = teacherCodePrefix + code[:teacherCodeRandomChars]

		// Проверяем уникальность
		exists, err := teachers.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code exists: %w", err)
		}

		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique teacher code after %d attempts", teacherCodeAttempts)
}
