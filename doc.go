// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package gozip reads and writes PKWARE ZIP archives, including the ZIP64
large-archive extension, classic PKWARE ("ZipCrypto") encryption and
WinZip-compatible AES encryption.

[Archive], opened with [Open], [Create], [CreateTruncate], [OpenAppend] or
[OpenStream], is a general-purpose archive session backed by a seekable byte
stream (typically an *os.File): it supports reading existing entries,
appending new ones, and streaming encryption and the four supported
compression methods.

See: https://www.pkware.com/appnote, https://golang.org/pkg/archive/zip/

This package does not support disk spanning.
*/
package gozip
