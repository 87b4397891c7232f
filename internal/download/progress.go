package download

// Progress is a transfer snapshot. Total is -1 when the server did not send
// a content length.
type Progress struct {
	Written int64 `json:"written"`
	Total   int64 `json:"total"`
}

// Fraction is Written/Total in [0,1]; ok is false when Total is unknown.
func (p Progress) Fraction() (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	f := float64(p.Written) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	return f, true
}

type progressWriter struct {
	written  int64
	total    int64
	step     float64
	last     float64
	report   func(Progress)
	reported bool
}

func (w *progressWriter) Write(b []byte) (int, error) {
	w.written += int64(len(b))
	p := Progress{Written: w.written, Total: w.total}
	f, ok := p.Fraction()
	if !ok || f-w.last >= w.step {
		w.last = f
		w.emit()
	}
	return len(b), nil
}

func (w *progressWriter) emit() {
	if w.report == nil {
		return
	}
	w.reported = true
	w.report(Progress{Written: w.written, Total: w.total})
}

// finish reports completion unless the last report already covered it.
func (w *progressWriter) finish() {
	if f, ok := (Progress{Written: w.written, Total: w.total}).Fraction(); ok && f == w.last && w.reported {
		return
	}
	w.emit()
}
