package patient

// ValidNHSNumber reports whether s is a ten digit NHS number with a correct
// mod 11 check digit. The first nine digits are weighted 10 down to 2; the
// tenth digit must equal 11 minus the weighted sum mod 11, with 11 treated
// as 0 and 10 always invalid.
func ValidNHSNumber(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * (10 - i)
	}
	last := s[9]
	if last < '0' || last > '9' {
		return false
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	if check == 10 {
		return false
	}
	return int(last-'0') == check
}
