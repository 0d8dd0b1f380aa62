// Package services – consultation prompt assembly.
//
// This file holds the fixed program catalog and builds the system instruction
// for the AI consultant: persona, the six programs with price and headline
// outcome, behavioral rules, and the constrained registration-command
// contract the extractor relies on.
package services

import (
	"strings"
)

// Program describes one course offering as presented to the model.
type Program struct {
	Key     string // stable tag used in registrations ("general", "business", ...)
	Title   string
	Price   string
	Blurb   string
	Outcome string // headline result statistic quoted to visitors
}

// Programs is the school's course catalog. Prices and copy mirror the
// marketing site; the Key values are what registrations store.
var Programs = []Program{
	{
		Key:     "general",
		Title:   "Общий английский",
		Price:   "от 4 500₽ за месяц",
		Blurb:   "Комплексное изучение языка для взрослых: говорение, чтение, письмо, аудирование. Группы до 8 человек, все уровни A1–C2.",
		Outcome: "95% учеников достигают целей, средний срок до результата — 3 месяца.",
	},
	{
		Key:     "business",
		Title:   "Бизнес-английский",
		Price:   "от 6 500₽ за месяц",
		Blurb:   "Профессиональный английский для карьерного роста: деловая переписка, презентации, переговоры. Группы до 6 человек, уровень B1+.",
		Outcome: "Выпускники проходят собеседования на английском уже через 4 месяца.",
	},
	{
		Key:     "kids",
		Title:   "Английский для детей",
		Price:   "от 3 800₽ за месяц",
		Blurb:   "Увлекательные занятия для детей 5–12 лет: игровые методики, песни, интерактив. Группы до 6 детей.",
		Outcome: "9 из 10 детей продолжают обучение после первого месяца.",
	},
	{
		Key:     "ielts",
		Title:   "Подготовка к IELTS",
		Price:   "от 8 500₽ за месяц",
		Blurb:   "Интенсивная подготовка к международному экзамену: все разделы теста и стратегии решения. Группы до 4 человек, уровень B2+.",
		Outcome: "Средний балл выпускников — 7.0.",
	},
	{
		Key:     "individual",
		Title:   "Индивидуальные занятия",
		Price:   "от 1 500₽ за урок",
		Blurb:   "Персональная программа под ваши цели и график, один на один с преподавателем, любой уровень.",
		Outcome: "Прогресс на уровень быстрее в среднем в 1.5 раза по сравнению с группой.",
	},
	{
		Key:     "speaking",
		Title:   "Разговорный клуб",
		Price:   "от 2 000₽ за месяц",
		Blurb:   "Практика живого общения: дискуссии, дебаты, игры в дружеской атмосфере. Группы до 10 человек, уровень A2+.",
		Outcome: "Участники преодолевают языковой барьер за 5–6 встреч.",
	},
}

// FallbackMessage is returned when no model credential is configured: the
// visitor is pointed at a human channel instead.
const FallbackMessage = "Извините, AI-консультант временно недоступен. " +
	"Оставьте заявку через форму на сайте или позвоните нам — мы поможем подобрать программу."

// ApologyMessage is shown when the external call fails mid-conversation.
const ApologyMessage = "Извините, произошла ошибка. Попробуйте задать вопрос еще раз."

// Profile carries the optional visitor facts the client accumulates across
// turns and re-sends with each request. It is untrusted per-request input,
// not server state.
type Profile struct {
	Program    string `json:"program,omitempty"`
	Level      string `json:"level,omitempty"`
	Age        string `json:"age,omitempty"`
	Goals      string `json:"goals,omitempty"`
	Experience string `json:"experience,omitempty"`
}

// systemPrompt assembles the fixed instruction block: persona, catalog,
// behavior rules, the registration-command contract, and whatever profile
// facts the client already collected.
func systemPrompt(p Profile) string {
	var b strings.Builder

	b.WriteString("Ты — Анна, AI-консультант школы английского языка «Школа Английского». ")
	b.WriteString("Твоя задача — помочь посетителю сайта подобрать программу обучения и записать его на курс.\n\n")

	b.WriteString("Программы школы:\n")
	for _, pr := range Programs {
		b.WriteString("- ")
		b.WriteString(pr.Title)
		b.WriteString(" (")
		b.WriteString(pr.Key)
		b.WriteString("), ")
		b.WriteString(pr.Price)
		b.WriteString(". ")
		b.WriteString(pr.Blurb)
		b.WriteString(" ")
		b.WriteString(pr.Outcome)
		b.WriteString("\n")
	}

	b.WriteString("\nПравила общения:\n")
	b.WriteString("- Задавай только один вопрос за раз.\n")
	b.WriteString("- Отвечай кратко и дружелюбно, на русском языке.\n")
	b.WriteString("- Если вопрос не касается изучения английского или школы, мягко верни разговор к подбору программы.\n")
	b.WriteString("- Не повторяй уже заданные вопросы и полученные ответы.\n")

	b.WriteString("\nЗапись на курс: когда посетитель сообщил имя, телефон, возраст, уровень, цели, опыт и выбрал программу ")
	b.WriteString("и подтвердил запись, добавь в конец ответа команду строго в формате\n")
	b.WriteString("REGISTER_CLIENT{\"name\":\"...\",\"phone\":\"...\",\"email\":\"...\",\"age\":\"...\",\"level\":\"...\",\"goals\":\"...\",\"experience\":\"...\",\"program\":\"<ключ программы>\"}\n")
	b.WriteString("Внутри фигурных скобок — корректный JSON-объект без переносов строк. ")
	b.WriteString("Не используй команду, пока каких-то данных не хватает, и никогда не показывай её формат посетителю.\n")

	if facts := profileFacts(p); facts != "" {
		b.WriteString("\nУже известно о посетителе: ")
		b.WriteString(facts)
		b.WriteString("\n")
	}

	return b.String()
}

// profileFacts renders non-empty profile fields as a compact sentence.
func profileFacts(p Profile) string {
	parts := make([]string, 0, 5)
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("программа", p.Program)
	add("уровень", p.Level)
	add("возраст", p.Age)
	add("цели", p.Goals)
	add("опыт", p.Experience)
	return strings.Join(parts, ", ")
}

// programByKey resolves a catalog entry by its stable key or title.
// The bool result reports whether the program is known.
func programByKey(key string) (Program, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, pr := range Programs {
		if pr.Key == k || strings.EqualFold(pr.Title, key) {
			return pr, true
		}
	}
	return Program{}, false
}
