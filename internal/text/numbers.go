package text

import (
	"strconv"
	"strings"
)

// Boundaries of the decimal grouping used by the converter.
const (
	numberBaseTen      = 10
	numberBaseTwenty   = 20
	numberBaseHundred  = 100
	numberBaseThousand = 1000

	// maxNumberForWords is the largest integer spelled out; anything bigger
	// is left as digits.
	maxNumberForWords = 999999
)

var (
	onesWords = []string{
		"", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine",
	}
	teenWords = []string{
		"ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	tensWords = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}
)

// integerStringToWords converts a digit run to English words, leaving the
// input untouched when it does not parse or exceeds the spell-out range.
func integerStringToWords(digits string) string {
	number, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}

	return IntegerToWords(number)
}

// IntegerToWords converts an integer into its English word representation.
// Values outside [0, 999999] are returned as digits.
func IntegerToWords(number int) string {
	if number < 0 || number > maxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	var parts []string

	remaining := number

	thousands := remaining / numberBaseThousand
	if thousands > 0 {
		parts = append(parts, convertUnderThousand(thousands)+" thousand")
		remaining %= numberBaseThousand
	}

	if remaining > 0 {
		parts = append(parts, convertUnderThousand(remaining))
	}

	return strings.Join(parts, " ")
}

func convertUnderThousand(number int) string {
	hundreds := number / numberBaseHundred
	remainder := number % numberBaseHundred

	if hundreds == 0 {
		return convertUnderHundred(remainder)
	}

	result := onesWords[hundreds] + " hundred"
	if remainder > 0 {
		result += " " + convertUnderHundred(remainder)
	}

	return result
}

func convertUnderHundred(number int) string {
	switch {
	case number < numberBaseTen:
		return onesWords[number]
	case number < numberBaseTwenty:
		return teenWords[number-numberBaseTen]
	default:
		result := tensWords[number/numberBaseTen]
		if number%numberBaseTen > 0 {
			result += " " + onesWords[number%numberBaseTen]
		}

		return result
	}
}
