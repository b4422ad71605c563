/*
vocabulary.go - Inbound dialogue vocabulary

PURPOSE:
  The dialogue is driven by a closed, locale-fixed set of button labels.
  Matching is exact and case-sensitive; anything else is IntentUnknown
  and inert to the state machine (no reply, no mutation).

SEE ALSO:
  - messages.go: Outbound texts and keyboards built from the same labels
  - machine.go: Transition table keyed by intent
*/
package sale

import "strings"

// Button labels and commands, exactly as the chat client sends them back.
const (
	CommandStart  = "/start"
	LabelBuy      = "Купить файлы"
	LabelSupport  = "Техподдержка"
	LabelDomestic = "Из России"
	LabelForeign  = "Не из России"
	LabelCrypto   = "Криптовалютой"
	LabelCIS      = "Для стран СНГ"
	LabelAbroad   = "Из-за рубежа"
	LabelAnother  = "Выбрать другой способ оплаты"
)

var vocabulary = map[string]Intent{
	LabelBuy:      IntentBuy,
	LabelSupport:  IntentSupport,
	LabelDomestic: IntentDomestic,
	LabelForeign:  IntentForeign,
	LabelCrypto:   IntentCrypto,
	LabelCIS:      IntentCIS,
	LabelAbroad:   IntentAbroad,
	LabelAnother:  IntentAnotherMethod,
}

// ParseIntent maps inbound text to an intent. The start command tolerates
// a trailing payload ("/start ref123") the way chat clients send deep links;
// everything else requires an exact label match.
func ParseIntent(text string) Intent {
	if text == CommandStart || strings.HasPrefix(text, CommandStart+" ") {
		return IntentStart
	}
	if intent, ok := vocabulary[text]; ok {
		return intent
	}
	return IntentUnknown
}
