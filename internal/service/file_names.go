package service

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
	"wopi-gateway/internal/errs"
)

const (
	maxFileNameLength = 255
	// сколько альтернативных имён перебираем при конфликте
	maxAlternateNames = 100
)

// resolveRelativeTarget : имя файла для PUT_RELATIVE.
// suggested вида ".pdf" меняет только расширение, relative используется как есть
func resolveRelativeTarget(sourceName, suggested, relative string) (string, error) {
	if (suggested == "") == (relative == "") {
		return "", fmt.Errorf("нужен ровно один из SuggestedTarget и RelativeTarget: %w", errs.ErrMalformed)
	}

	name := relative
	if suggested != "" {
		name = suggested
		if strings.HasPrefix(suggested, ".") {
			name = baseName(sourceName) + suggested
		}
	}

	if err := validateFileName(name); err != nil {
		return "", err
	}
	return name, nil
}

// renameTarget : RENAME_FILE передаёт имя без расширения, расширение остаётся прежним
func renameTarget(currentName, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	ext := path.Ext(currentName)
	if ext != "" && strings.EqualFold(path.Ext(requested), ext) {
		requested = strings.TrimSuffix(requested, path.Ext(requested))
	}

	name := requested + ext
	if requested == "" {
		return "", fmt.Errorf("пустое имя файла: %w", errs.ErrMalformed)
	}
	if err := validateFileName(name); err != nil {
		return "", err
	}
	return name, nil
}

// alternateName : "report.pdf" -> "report (n).pdf"
func alternateName(name string, n int) string {
	ext := path.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
}

func baseName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

func validateFileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "", name == ".", name == "..":
		return fmt.Errorf("пустое имя файла: %w", errs.ErrMalformed)
	case !utf8.ValidString(name):
		return fmt.Errorf("имя файла не в UTF-8: %w", errs.ErrMalformed)
	case utf8.RuneCountInString(name) > maxFileNameLength:
		return fmt.Errorf("имя файла длиннее %d символов: %w", maxFileNameLength, errs.ErrMalformed)
	case strings.ContainsAny(name, `/\:*?"<>|`):
		return fmt.Errorf("недопустимые символы в имени %q: %w", name, errs.ErrMalformed)
	}
	for _, r := range name {
		if r < 0x20 {
			return fmt.Errorf("управляющие символы в имени файла: %w", errs.ErrMalformed)
		}
	}
	return nil
}
