// Package features derives coarse categorical features from a transaction.
// They are stored as metadata alongside each indexed record and are not part
// of the embedded document text.
package features

import (
	"math"
	"strings"

	"github.com/ziadkadry99/bookkeeper/internal/model"
)

// TimePeriod buckets the hour of day a transaction happened.
type TimePeriod string

const (
	PeriodNight     TimePeriod = "night"
	PeriodMorning   TimePeriod = "morning"
	PeriodNoon      TimePeriod = "noon"
	PeriodAfternoon TimePeriod = "afternoon"
	PeriodEvening   TimePeriod = "evening"
	PeriodUnknown   TimePeriod = "unknown"
)

// AmountSize buckets the absolute transaction amount.
type AmountSize string

const (
	SizeSmall   AmountSize = "small"
	SizeMedium  AmountSize = "medium"
	SizeLarge   AmountSize = "large"
	SizeUnknown AmountSize = "unknown"
)

// Amount thresholds in yuan: small < 50 <= medium < 500 <= large.
const (
	smallAmountLimit  = 50.0
	mediumAmountLimit = 500.0
)

// TimeBucket parses raw and buckets its hour. Night wraps around midnight
// (21:00 up to 06:59).
func TimeBucket(raw string) TimePeriod {
	t, ok := model.ParseTime(raw)
	if !ok {
		return PeriodUnknown
	}
	return HourBucket(t.Hour())
}

// HourBucket buckets an hour of day in [0, 23].
func HourBucket(hour int) TimePeriod {
	switch {
	case hour < 0 || hour > 23:
		return PeriodUnknown
	case hour >= 21 || hour < 7:
		return PeriodNight
	case hour < 11:
		return PeriodMorning
	case hour < 14:
		return PeriodNoon
	case hour < 18:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// AmountBucket parses raw and returns its numeric value together with its
// size bucket. Unparsable input yields (0, SizeUnknown).
func AmountBucket(raw string) (float64, AmountSize) {
	d, ok := model.ParseAmount(raw)
	if !ok {
		return 0, SizeUnknown
	}
	v := d.InexactFloat64()
	return v, SizeOf(v)
}

// SizeOf buckets an amount; negative amounts are bucketed by magnitude.
func SizeOf(amount float64) AmountSize {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return SizeUnknown
	}
	a := math.Abs(amount)
	switch {
	case a < smallAmountLimit:
		return SizeSmall
	case a < mediumAmountLimit:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// Channel is the kind of account a payment was made from.
type Channel string

const (
	ChannelCreditCard Channel = "credit_card"
	ChannelDebitCard  Channel = "debit_card"
	ChannelAlipay     Channel = "alipay"
	ChannelWeChat     Channel = "wechat"
	ChannelOther      Channel = "other"
)

// PaymentChannel classifies a payment method such as "招商银行信用卡(1234)".
func PaymentChannel(method string) Channel {
	lower := strings.ToLower(method)
	switch {
	case method == "":
		return ChannelOther
	case strings.Contains(method, "信用卡") || strings.Contains(lower, "credit"):
		return ChannelCreditCard
	case strings.Contains(method, "储蓄卡") || strings.Contains(method, "借记卡") || strings.Contains(lower, "debit"):
		return ChannelDebitCard
	case strings.Contains(method, "支付宝") || strings.Contains(method, "余额宝") || strings.Contains(method, "花呗") || strings.Contains(lower, "alipay"):
		return ChannelAlipay
	case strings.Contains(method, "微信") || strings.Contains(method, "零钱") || strings.Contains(lower, "wechat"):
		return ChannelWeChat
	default:
		return ChannelOther
	}
}
