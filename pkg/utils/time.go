package utils

import "time"

// dateLayout — формат дат в query-параметрах API
const dateLayout = "2006-01-02"

// ParseDate разбирает дату вида YYYY-MM-DD (UTC)
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// FormatDate возвращает дату в виде YYYY-MM-DD (UTC)
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// DayBounds возвращает границы суток [start, end) в UTC для момента t.
// Полуоткрытый интервал избавляет от граничных значений 23:59:59.999...
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// DaysAgo возвращает начало суток n дней назад в UTC
func DaysAgo(n int) time.Time {
	start, _ := DayBounds(time.Now().AddDate(0, 0, -n))
	return start
}
