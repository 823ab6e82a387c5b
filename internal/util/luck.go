package util

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Luck возвращает детерминированное псевдослучайное число в диапазоне [0, 1).
// Результат зависит только от строки seed: одинаковый seed даёт одинаковое
// значение в любом процессе и в любой сессии, без сохранённого состояния.
func Luck(seed string) float64 {
	h := xxhash.Sum64String(seed)
	// Старшие 53 бита помещаются в мантиссу float64 без потерь
	return float64(h>>11) / (1 << 53)
}

// LuckKey собирает строку-сид из частей через запятую: LuckKey(3, 5, "initialValue") == "3,5,initialValue".
func LuckKey(parts ...interface{}) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	return strings.Join(strs, ",")
}
