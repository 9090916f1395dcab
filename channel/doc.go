// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package channel defines the publish/subscribe channel over which raw
// receiver bytes are exchanged.
//
// A Message is one delivery unit: a flat descriptor (length, stride,
// label) followed by the payload bytes in original order. Pack and Unpack
// are exact inverses, so a payload survives the channel byte-for-byte.
//
// Publisher and Subscriber are the two halves of a channel endpoint. Bus
// is an in-process implementation used by tests and single-process
// deployments; the redischannel and wschannel subpackages carry the same
// frames between processes.
package channel
