package host

import (
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bitbuf"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Connectionless bodies follow the -1 header and the opcode byte.
//
//	q  version int32
//	A  challenge uint32
//	k  version int32, challenge uint32, name string
//	B  challenge uint32
//	9  reason string
//	i  (empty)
//	j  (empty)
const (
	connectionlessBuf = 256
	maxRejectLength   = 256
)

// writeConnectionless builds a connectionless datagram.
func writeConnectionless(op byte, body func(w *bitbuf.Writer)) []byte {
	w := bitbuf.NewWriter(connectionlessBuf)
	w.WriteInt32(protocol.ConnectionlessHeader)
	w.WriteUint8(op)
	if body != nil {
		body(w)
	}
	if w.Overflowed() {
		return nil
	}
	return w.Bytes()
}

// readConnectionless returns the opcode of a connectionless datagram and a
// reader positioned at its body.
func readConnectionless(data []byte) (byte, *bitbuf.Reader, bool) {
	r := bitbuf.NewReader(data)
	if r.ReadInt32() != protocol.ConnectionlessHeader {
		return 0, nil, false
	}
	op := r.ReadUint8()
	return op, r, !r.Overflowed()
}

func isConnectionless(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bitbuf.NewReader(data[:4]).ReadInt32() == protocol.ConnectionlessHeader
}

func getChallengePacket(version int32) []byte {
	return writeConnectionless(protocol.C2SGetChallenge, func(w *bitbuf.Writer) {
		w.WriteInt32(version)
	})
}

func challengePacket(challenge uint32) []byte {
	return writeConnectionless(protocol.S2CChallenge, func(w *bitbuf.Writer) {
		w.WriteUint32(challenge)
	})
}

type connectRequest struct {
	Version   int32
	Challenge uint32
	Name      string
}

func connectPacket(req connectRequest) []byte {
	return writeConnectionless(protocol.C2SConnect, func(w *bitbuf.Writer) {
		w.WriteInt32(req.Version)
		w.WriteUint32(req.Challenge)
		w.WriteString(req.Name)
	})
}

func readConnectRequest(r *bitbuf.Reader) (connectRequest, bool) {
	var req connectRequest
	req.Version = r.ReadInt32()
	req.Challenge = r.ReadUint32()
	name, ok := r.ReadString(MaxPlayerNameLength)
	if !ok {
		return req, false
	}
	req.Name = name
	return req, !r.Overflowed()
}

func acceptPacket(challenge uint32) []byte {
	return writeConnectionless(protocol.S2CConnection, func(w *bitbuf.Writer) {
		w.WriteUint32(challenge)
	})
}

func rejectPacket(reason string) []byte {
	if len(reason) > maxRejectLength {
		reason = reason[:maxRejectLength]
	}
	return writeConnectionless(protocol.S2CConnReject, func(w *bitbuf.Writer) {
		w.WriteString(reason)
	})
}
