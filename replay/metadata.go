package replay

import "github.com/tangobattle/tango-sub001/internal/wire"

// PlayerMeta describes one side of a match for the replay header.
type PlayerMeta struct {
	Nickname     string
	GameIdentity string
	Patch        string
}

// Metadata is the structured blob stored length-prefixed in the replay
// header: when the match happened, how the players found each other, who
// they were, and what they were playing.
type Metadata struct {
	Timestamp    int64
	LinkCode     string
	RoundNumber  uint8
	MatchType    uint8
	MatchSubtype uint8
	Players      [2]PlayerMeta
}

func encodeMetadata(m Metadata) []byte {
	w := wire.NewWriter()

	w.U64(uint64(m.Timestamp))
	w.Blob([]byte(m.LinkCode))
	w.U8(m.RoundNumber)
	w.U8(m.MatchType)
	w.U8(m.MatchSubtype)

	for _, p := range m.Players {
		w.Blob([]byte(p.Nickname))
		w.Blob([]byte(p.GameIdentity))
		w.Blob([]byte(p.Patch))
	}

	return w.Bytes()
}

func decodeMetadata(raw []byte) (Metadata, error) {
	r := wire.NewReader(raw)

	var m Metadata
	m.Timestamp = int64(r.U64())
	m.LinkCode = string(r.Blob())
	m.RoundNumber = r.U8()
	m.MatchType = r.U8()
	m.MatchSubtype = r.U8()

	for i := range m.Players {
		m.Players[i].Nickname = string(r.Blob())
		m.Players[i].GameIdentity = string(r.Blob())
		m.Players[i].Patch = string(r.Blob())
	}

	if err := r.Err(); err != nil {
		return Metadata{}, err
	}

	return m, nil
}
