package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Quality - уровень качества, в котором хранится фото.
// Original хранится как есть, W{N} - производные шириной N пикселей.
type Quality string

const QualityOriginal Quality = "Original"

// QualityForWidth возвращает тег качества для целевой ширины.
func QualityForWidth(width int) Quality {
	return Quality(fmt.Sprintf("W%d", width))
}

// ParseQuality разбирает строку вида "Original" или "W400".
func ParseQuality(s string) (Quality, error) {
	if strings.EqualFold(s, string(QualityOriginal)) {
		return QualityOriginal, nil
	}
	if len(s) < 2 || (s[0] != 'W' && s[0] != 'w') {
		return "", fmt.Errorf("unknown quality %q", s)
	}
	width, err := strconv.Atoi(s[1:])
	if err != nil || width <= 0 {
		return "", fmt.Errorf("unknown quality %q", s)
	}
	return QualityForWidth(width), nil
}

// IsOriginal сообщает, является ли качество оригиналом.
func (q Quality) IsOriginal() bool {
	return q == QualityOriginal
}

// Width возвращает целевую ширину производного качества; 0 для Original.
func (q Quality) Width() int {
	if q.IsOriginal() || len(q) < 2 {
		return 0
	}
	width, err := strconv.Atoi(string(q[1:]))
	if err != nil {
		return 0
	}
	return width
}

func (q Quality) String() string {
	return string(q)
}

// Tiers - упорядоченный набор производных качеств, заданный конфигурацией.
type Tiers []Quality

// NewTiers строит набор качеств из списка ширин, отсортированный по возрастанию
// и без повторов.
func NewTiers(widths []int) Tiers {
	sorted := append([]int(nil), widths...)
	sort.Ints(sorted)

	tiers := make(Tiers, 0, len(sorted))
	seen := make(map[int]struct{}, len(sorted))
	for _, w := range sorted {
		if w <= 0 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tiers = append(tiers, QualityForWidth(w))
	}
	return tiers
}

// Contains проверяет, что качество входит в набор.
func (t Tiers) Contains(q Quality) bool {
	for _, tier := range t {
		if tier == q {
			return true
		}
	}
	return false
}

// All возвращает Original и все производные качества.
func (t Tiers) All() []Quality {
	return append([]Quality{QualityOriginal}, t...)
}
