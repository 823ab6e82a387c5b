package world

import "fmt"

// Token: единица ценности (монета), появившаяся в клетке (I, J) с порядковым номером Serial.
// Происхождение токена не меняется никогда, даже после депозита в тайник другой клетки.
type Token struct {
	I      int `json:"i"`
	J      int `json:"j"`
	Serial int `json:"serial"`
}

// String возвращает отображаемое имя "i:j#serial"
func (t Token) String() string {
	return fmt.Sprintf("%d:%d#%d", t.I, t.J, t.Serial)
}

// OriginKey возвращает ключ клетки, в которой токен был создан
func (t Token) OriginKey() string {
	return CellKey(t.I, t.J)
}
