// Package remregs implements the initiator side of the remregs register
// protocol: a compact request/response protocol that reads and writes the
// registers of a peripheral over a point-to-point serial link.
//
// # Protocol Overview
//
// Registers are addressed with 10 bits (0-1023) and come in four widths:
// 8, 16 and 32 bits, and a variable-length multibyte form of up to 29 bytes.
// A request frame is:
//
//   - Header:  (opcode << 2) | address bits 9..8
//   - Address: address bits 7..0
//   - Length:  payload length, write-mb only
//   - Payload: the value for writes, little-endian; nothing for reads
//
// The peer answers with one status byte, ACK (0x06) or NAK (0x0F). A read
// that is acknowledged is followed by its value: 1, 2 or 4 bytes, or a
// length byte and that many bytes for multibyte registers.
//
// # Synchronization
//
// Before the first frame the initiator sends 24 x 0xFF followed by 0xAA and
// waits for the peer to answer 0xAA (or 0x55). A response timeout drops the
// link back to Unsynced and the next operation repeats the handshake. A NAK
// never does: a rejected operation says nothing about the link itself.
//
// # Platform Model
//
// The link runs on hosts without a scheduler. Every wait is a bounded poll
// of a fixed interval times a fixed ceiling, servicing the platform watchdog
// on each iteration. Received bytes reach the link through
// [Link.OnByteReceived], called from the byte-arrival context, and are
// queued in a wait-free ring that the foreground context drains. The host
// supplies the remaining collaborators through [Platform]; package hostport
// provides one for OS-hosted serial ports and streams.
package remregs
