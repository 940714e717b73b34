package analytics

// PreviousWindow returns the window of equal length ending the day before w
// starts.
func PreviousWindow(w Window) Window {
	n := w.Days()
	loc := w.Start.Location()
	return NewWindow(w.Start.AddDate(0, 0, -n), w.End.AddDate(0, 0, -n), loc)
}

// GrowthRate compares current against prev as a percentage rounded to one
// decimal. With no previous activity it is 100 if there is any current
// activity and 0 otherwise.
func GrowthRate(current, prev int) float64 {
	if prev > 0 {
		return Round1(float64(current-prev) / float64(prev) * 100)
	}
	if current > 0 {
		return 100
	}
	return 0
}
