package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"professor-rag/internal/models"
)

type reviewFile struct {
	Reviews []models.ProfessorReview `json:"reviews"`
}

// ParseReviews loads professor reviews from a .json or .xlsx file. Records without a
// professor name or review text are skipped.
func ParseReviews(filePath string) ([]models.ProfessorReview, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		reviews []models.ProfessorReview
		err     error
	)
	switch ext {
	case ".json":
		reviews, err = parseJSON(filePath)
	case ".xlsx":
		reviews, err = parseXLSX(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return cleanReviews(reviews), nil
}

// parseJSON accepts either {"reviews": [...]} or a bare array.
func parseJSON(filePath string) ([]models.ProfessorReview, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var reviews []models.ProfessorReview
		if err := json.Unmarshal(data, &reviews); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filePath, err)
		}
		return reviews, nil
	}

	var f reviewFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return f.Reviews, nil
}

// parseXLSX reads the first sheet. Row 1 is a header naming the columns professor,
// subject, stars and review in any order.
func parseXLSX(filePath string) ([]models.ProfessorReview, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, required := range []string{models.MetaProfessor, models.MetaSubject, models.MetaStars, models.MetaReview} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing columns %s", filePath, strings.Join(missing, ", "))
	}

	cell := func(row []string, name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var reviews []models.ProfessorReview
	for n, row := range rows[1:] {
		stars, err := strconv.ParseFloat(cell(row, models.MetaStars), 64)
		if err != nil {
			log.Warn().Int("row", n+2).Str("file", filePath).Msg("Invalid stars value, using 0")
		}
		reviews = append(reviews, models.ProfessorReview{
			Professor: cell(row, models.MetaProfessor),
			Subject:   cell(row, models.MetaSubject),
			Stars:     stars,
			Review:    cell(row, models.MetaReview),
		})
	}
	return reviews, nil
}

func cleanReviews(in []models.ProfessorReview) []models.ProfessorReview {
	out := make([]models.ProfessorReview, 0, len(in))
	for _, r := range in {
		r.Professor = strings.TrimSpace(r.Professor)
		if r.Professor == "" || strings.TrimSpace(r.Review) == "" {
			log.Warn().Str("professor", r.Professor).Msg("Skipping incomplete review")
			continue
		}
		out = append(out, r)
	}
	return out
}
