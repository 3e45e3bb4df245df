// Package billing содержит чистую функцию тарификации закрытия сессии.
// Резолвер не обращается к хранилищу и не имеет побочных эффектов:
// одинаковый вход всегда даёт побитово одинаковый результат.
package billing

import (
	"math"

	"github.com/askspace/coworking-ledger/internal/models"
)

// Input состояние прав пользователя и длительность сессии на момент закрытия.
type Input struct {
	HasActiveSubscription bool
	HourBalance           float64
	ElapsedHours          float64
	// ExplicitCost навязанная стоимость (форсированное закрытие или
	// переопределение подпиской); применяется только если не сработали
	// ветки подписки и остатка часов.
	ExplicitCost *int64
	// ExplicitMethod способ оплаты, сопровождающий ExplicitCost.
	ExplicitMethod models.PaymentMethod
}

// Outcome результат тарификации.
type Outcome struct {
	Cost          int64
	Deducted      bool
	NewBalance    float64
	PaymentMethod models.PaymentMethod
}

// Resolver вычисляет стоимость сессии по фиксированной почасовой ставке
// в текущих единицах валюты.
type Resolver struct {
	RatePerHour int64
}

// New создает новый экземпляр Resolver.
func New(ratePerHour int64) *Resolver {
	return &Resolver{RatePerHour: ratePerHour}
}

// Resolve применяет порядок разрешения тарификации. Порядок веток —
// осознанная политика, первое совпадение выигрывает:
//
//  1. Активная подписка: бесплатно, способ оплаты Prepaid, остаток не тронут.
//  2. Положительный остаток часов: списание; если остаток исчерпан,
//     непокрытый излишек тарифицируется по почасовой ставке.
//  3. Явно переданная стоимость: применяется как есть, способ оплаты
//     остаётся за вызывающим.
//  4. Иначе наличные по почасовой ставке.
//
// Остаток никогда не становится отрицательным.
func (r *Resolver) Resolve(in Input) Outcome {
	switch {
	case in.HasActiveSubscription:
		return Outcome{
			Cost:          0,
			Deducted:      false,
			NewBalance:    in.HourBalance,
			PaymentMethod: models.PaymentPrepaid,
		}
	case in.HourBalance > 0:
		newBalance := math.Max(0, in.HourBalance-in.ElapsedHours)
		var cost int64
		if newBalance == 0 && in.ElapsedHours > in.HourBalance {
			uncovered := in.ElapsedHours - in.HourBalance
			// Округляется итоговая стоимость, а не длительность.
			cost = int64(math.Round(uncovered * float64(r.RatePerHour)))
		}
		return Outcome{
			Cost:          cost,
			Deducted:      true,
			NewBalance:    newBalance,
			PaymentMethod: models.PaymentNone,
		}
	case in.ExplicitCost != nil:
		return Outcome{
			Cost:          *in.ExplicitCost,
			Deducted:      false,
			NewBalance:    in.HourBalance,
			PaymentMethod: in.ExplicitMethod,
		}
	default:
		return Outcome{
			Cost:          int64(math.Round(in.ElapsedHours * float64(r.RatePerHour))),
			Deducted:      false,
			NewBalance:    in.HourBalance,
			PaymentMethod: models.PaymentCash,
		}
	}
}
