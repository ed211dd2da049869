package mov

// decodeTkhd is a no-op: the track header carries presentation geometry
// this package never needs (width/height come from the stsd sample entry
// instead), but the box is still dispatched so unknown children of trak
// are not mistaken for parse failures.
func decodeTkhd(payload []byte, fb *FullBox) error {
	return nil
}
