package processor

import "squeeze/internal/search"

// fileObserver forwards search callbacks to the caller's observer and to
// the progress channel.
type fileObserver struct {
	next    search.Observer
	updates chan<- ProgressUpdate
}

var _ search.Observer = (*fileObserver)(nil)

func (o *fileObserver) OnQualityTried(quality int) {
	if o.next != nil {
		o.next.OnQualityTried(quality)
	}
	if o.updates != nil {
		o.updates <- ProgressUpdate{Quality: quality}
	}
}

func (o *fileObserver) OnSizeMeasured(sizeKB float64) {
	if o.next != nil {
		o.next.OnSizeMeasured(sizeKB)
	}
	if o.updates != nil {
		o.updates <- ProgressUpdate{SizeKB: sizeKB}
	}
}

func (o *fileObserver) OnProgress(done, total int) {
	if o.next != nil {
		o.next.OnProgress(done, total)
	}
}

func (d Deps) send(update ProgressUpdate) {
	if d.Updates != nil {
		d.Updates <- update
	}
}
