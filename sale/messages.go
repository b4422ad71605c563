/*
messages.go - Outbound dialogue payloads

PURPOSE:
  Renders every outbound message of the purchase dialogue: the welcome
  prompt, payment-method menus, per-method payment instructions (with the
  one-time code), and the post-delivery confirmations. Destination
  accounts, price and the support handle are injected via Catalog so the
  texts never reach into process-wide state.

FORMATTING:
  Texts use the chat platform's Markdown conventions (*bold*, _italic_,
  `monospace`); the transport sets the parse mode.

SEE ALSO:
  - machine.go: Picks which payload a transition produces
  - config: Source of the injected values
*/
package sale

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Catalog holds the values the dialogue texts interpolate.
type Catalog struct {
	Price           decimal.Decimal
	SberbankAccount string
	YMoneyAccount   string
	PayeerAccount   string
	CryptoAccount   string
	SupportHandle   string
}

// Keyboard is a grid of reply buttons, row-major.
type Keyboard [][]string

// Welcome returns the greeting and the entry keyboard. Customers who have
// already been granted support see the support button instead of buy.
func (c *Catalog) Welcome(supportAccess bool) (string, Keyboard) {
	text := fmt.Sprintf(
		"*Добро пожаловать!*\n\n"+
			"Все предлагаемые файлы предназначены _только для Windows_.\n"+
			"Стоимость файлов: *%s рублей*.\n\n"+
			"Выберите действие ниже:", c.Price)
	if supportAccess {
		return text, Keyboard{{LabelSupport}}
	}
	return text, Keyboard{{LabelBuy}}
}

// MethodMenu returns the payment-method chooser.
func (c *Catalog) MethodMenu() (string, Keyboard) {
	return "Выберите способ оплаты:", Keyboard{
		{LabelDomestic, LabelForeign},
		{LabelCrypto},
	}
}

// ForeignMenu returns the sub-chooser for customers paying from abroad.
func (c *Catalog) ForeignMenu() (string, Keyboard) {
	return "Выберите подходящий вариант:", Keyboard{
		{LabelCIS, LabelAbroad},
		{LabelAnother},
	}
}

// AlreadyRequested is the rejection shown when buy is pressed while a
// payment code is still outstanding.
func (c *Catalog) AlreadyRequested() string {
	return "Вы уже запросили код оплаты. Пожалуйста, завершите оплату."
}

// Instructions renders the payment instructions for a chosen method leaf,
// embedding the freshly issued one-time code.
func (c *Catalog) Instructions(stage Stage, code string) string {
	switch stage {
	case StageSelectedDomestic:
		return fmt.Sprintf(
			"Ваш код подтверждения оплаты: *%s*\n\n"+
				"Переведите *%s рублей* на карту Сбербанка:\n`%s`\n\n"+
				"Укажите свой *Telegram-ник* и *код подтверждения*.",
			code, c.Price, c.SberbankAccount)
	case StageSelectedCrypto:
		return fmt.Sprintf(
			"Ваш код подтверждения оплаты: *%s*\n\n"+
				"Переведите сумму *%s рублей* по курсу в криптовалюте на адрес:\n`%s`\n\n"+
				"Укажите свой *Telegram-ник* и *код подтверждения*.",
			code, c.Price, c.CryptoAccount)
	case StageSelectedCIS:
		return fmt.Sprintf(
			"Ваш код подтверждения оплаты: *%s*\n\n"+
				"Переведите *%s рублей* на счет ЮМани:\n`%s`\n\n"+
				"[Регистрация в ЮМани](https://yoomoney.ru)\n\n"+
				"Укажите свой *Telegram-ник* и *код подтверждения*.",
			code, c.Price, c.YMoneyAccount)
	case StageSelectedAbroad:
		return fmt.Sprintf(
			"Ваш код подтверждения оплаты: *%s*\n\n"+
				"Переведите *%s рублей* на кошелек Payeer:\n`%s`\n\n"+
				"[Регистрация в Payeer](https://payeer.com)\n\n"+
				"Укажите свой *Telegram-ник* и *код подтверждения*.",
			code, c.Price, c.PayeerAccount)
	}
	return ""
}

// FileSentNotice confirms delivery and announces support access.
func (c *Catalog) FileSentNotice() string {
	return fmt.Sprintf("Файл отправлен. Теперь вам доступна техподдержка %s", c.SupportHandle)
}

// SupportReply is the one-time support contact message.
func (c *Catalog) SupportReply() string {
	return fmt.Sprintf("Для помощи свяжитесь с [техподдержкой](%s)", c.SupportHandle)
}
