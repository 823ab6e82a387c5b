package world

import "fmt"

// DirectoryEntry: пара ключ/снимок в порядке первой вставки.
type DirectoryEntry struct {
	Key   string   `json:"key"`
	Value Snapshot `json:"value"`
}

// Directory хранит последний снимок каждого тайника, который когда-либо изменялся.
// Ключи — строки "i:j", поэтому каталог переживает пересоздание объектов Cell.
// Directory не потокобезопасен: им владеет контроллер сессии.
type Directory struct {
	entries map[string]Snapshot
	order   []string
}

// NewDirectory создаёт пустой каталог
func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]Snapshot),
	}
}

// Get возвращает последний снимок тайника в клетке
func (d *Directory) Get(c *Cell) (Snapshot, bool) {
	s, ok := d.entries[c.Key()]
	return s, ok
}

// Has проверяет наличие записи для клетки
func (d *Directory) Has(c *Cell) bool {
	_, ok := d.entries[c.Key()]
	return ok
}

// Set сохраняет снимок тайника; существующая запись сохраняет свою позицию в порядке обхода
func (d *Directory) Set(c *Cell, s Snapshot) {
	d.set(c.Key(), s)
}

// Clear удаляет все записи (только при полном сбросе сессии)
func (d *Directory) Clear() {
	d.entries = make(map[string]Snapshot)
	d.order = nil
}

// Len возвращает количество записей
func (d *Directory) Len() int {
	return len(d.entries)
}

// Entries возвращает записи в порядке первой вставки
func (d *Directory) Entries() []DirectoryEntry {
	result := make([]DirectoryEntry, 0, len(d.order))
	for _, key := range d.order {
		result = append(result, DirectoryEntry{Key: key, Value: d.entries[key]})
	}
	return result
}

// Restore заменяет содержимое каталога записями из сохранённой сессии.
// Все ключи и снимки проверяются заранее: при ошибке каталог не меняется.
func (d *Directory) Restore(entries []DirectoryEntry) error {
	for _, entry := range entries {
		i, j, err := ParseCellKey(entry.Key)
		if err != nil {
			return err
		}
		// Ключ должен быть каноническим: "+1:01" не равен "1:1"
		if CellKey(i, j) != entry.Key {
			return fmt.Errorf("%w: non-canonical %q", ErrInvalidKey, entry.Key)
		}
		if err := ValidateSnapshot(entry.Value); err != nil {
			return fmt.Errorf("entry %s: %w", entry.Key, err)
		}
	}

	d.Clear()
	for _, entry := range entries {
		d.set(entry.Key, entry.Value)
	}
	return nil
}

func (d *Directory) set(key string, s Snapshot) {
	if _, exists := d.entries[key]; !exists {
		d.order = append(d.order, key)
	}
	d.entries[key] = s
}
