// Copyright 2026 The Hotplate Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package app

// BLE surface constants. The transport itself lives outside this module;
// these identify the device protocol to it.
const (
	// BLEServiceUUID is the device's GATT service.
	BLEServiceUUID = "5f524546-4c4f-575f-5250-435f5356435f"
	// BLERPCCharUUID carries the MsgPack RPC stream.
	BLERPCCharUUID = "5f524546-4c4f-575f-5250-435f494f5f5f"
	// BLEAuthCharUUID carries auth_info/authenticate/pair.
	BLEAuthCharUUID = "5f524546-4c4f-575f-5250-435f41555448"

	// BLEChunkPayload is the usable MTU payload per chunk; each chunk
	// starts with a 4 byte header {messageId u8, seq u16 LE, flags u8}.
	BLEChunkPayload = 244

	// Chunk header flags.
	BLEFlagFinal    = 0x01
	BLEFlagMissed   = 0x02
	BLEFlagOverflow = 0x04
)
