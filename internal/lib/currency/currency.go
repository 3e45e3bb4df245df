// Package currency конвертирует денежные суммы между старым и новым
// масштабом сирийского фунта. Хранение всегда ведётся в новых единицах,
// старые используются только для отображения.
package currency

// LegacyRatio фиксированное соотношение старых единиц к новым.
const LegacyRatio = 100

// ToLegacyUnits переводит сумму из текущих единиц в старые.
func ToLegacyUnits(amount float64) float64 {
	return amount * LegacyRatio
}

// ToCurrentUnits переводит сумму из старых единиц в текущие.
func ToCurrentUnits(legacyAmount float64) float64 {
	return legacyAmount / LegacyRatio
}
