package nand

// ═══════════════════════════════════════════════════════════════════════════
// STAGE BUILDER
// ═══════════════════════════════════════════════════════════════════════════
//
// Stateless functions that expand one Transaction into the 1..k StagePackets
// a Controller hands to a LogicalUnit's per-die queue. Each returned packet
// is a full base-command entry point: the LogicalUnit (via getConfirmCommand)
// drives it through its own confirm step and array stage without the builder
// needing to emit a second packet for the confirm half of the sequence.
//
// For multi-plane operations the caller supplies the already-resolved
// per-plane addresses (planeAddrs); round-robin "auto plane addressing" is a
// Controller responsibility (spec.md §4.4), not this package's.
//
// Grounded on original_source/nfs/NandStageBuilderTool.h's per-operation
// method contracts (EraseBlock/EraseNxBlock, ReadPage/ReadRandomColSelection,
// WritePage/WriteRandomColSelection, the ReadNxPlane*/WriteNxPlane* families,
// the cache variants, and the internal-data-movement pair), spec.md §4.4.

// fullPageBytes returns numBytes, defaulting to the whole page (minus the
// column offset) when the transaction left it zero.
func fullPageBytes(cfg DeviceConfig, col uint16, numBytes uint32) uint32 {
	if numBytes != 0 {
		return numBytes
	}
	if uint32(col) >= cfg.PageSize {
		return 0
	}
	return cfg.PageSize - uint32(col)
}

func packet(hostID uint32, arrival uint64, cmd Command, addr Address, col uint16, numBytes uint32, data []byte, status *uint32, last bool) *StagePacket {
	return &StagePacket{
		StageID:             hostID,
		Command:             cmd,
		Data:                data,
		StatusData:          status,
		Row:                 uint32(addr),
		Col:                 col,
		RandomBytes:         numBytes,
		ArrivalCycle:        arrival,
		IsLastOfTransaction: last,
	}
}

// BuildReadPage expands a single-plane, full-page read.
func BuildReadPage(cfg DeviceConfig, txn *Transaction, arrival uint64) []*StagePacket {
	nb := fullPageBytes(cfg, 0, txn.NumBytes)
	return []*StagePacket{packet(txn.HostTransID, arrival, CmdReadPage, txn.Addr, 0, nb, txn.Data, txn.StatusData, true)}
}

// BuildReadRandomColSelection expands a single-plane partial-column read
// starting at txn.ByteOff.
func BuildReadRandomColSelection(cfg DeviceConfig, txn *Transaction, arrival uint64) []*StagePacket {
	col := uint16(txn.ByteOff)
	nb := fullPageBytes(cfg, col, txn.NumBytes)
	return []*StagePacket{packet(txn.HostTransID, arrival, CmdReadRandom, txn.Addr, col, nb, txn.Data, txn.StatusData, true)}
}

// BuildWritePage expands a single-plane, full-page program.
func BuildWritePage(cfg DeviceConfig, txn *Transaction, arrival uint64) []*StagePacket {
	nb := fullPageBytes(cfg, 0, txn.NumBytes)
	return []*StagePacket{packet(txn.HostTransID, arrival, CmdProgPage, txn.Addr, 0, nb, txn.Data, txn.StatusData, true)}
}

// BuildWriteRandomColSelection expands a single-plane partial-column program.
func BuildWriteRandomColSelection(cfg DeviceConfig, txn *Transaction, arrival uint64) []*StagePacket {
	col := uint16(txn.ByteOff)
	nb := fullPageBytes(cfg, col, txn.NumBytes)
	cmd := CmdProgRandom
	if txn.IsLastNxSub {
		cmd = CmdProgRandomFin
	}
	return []*StagePacket{packet(txn.HostTransID, arrival, cmd, txn.Addr, col, nb, txn.Data, txn.StatusData, txn.IsLastNxSub)}
}

// BuildReadPageCache expands one step of a cache-read chain: txn.IsLastNxSub
// marks the final step of the chain and sets the packet's IsLastOfTransaction.
func BuildReadPageCache(cfg DeviceConfig, txn *Transaction, arrival uint64, first bool) []*StagePacket {
	cmd := CmdReadCache
	if first {
		cmd = CmdReadCacheAddrInit
	}
	nb := fullPageBytes(cfg, 0, txn.NumBytes)
	return []*StagePacket{packet(txn.HostTransID, arrival, cmd, txn.Addr, 0, nb, txn.Data, txn.StatusData, txn.IsLastNxSub)}
}

// BuildWritePageCache expands one step of a cache-program chain.
func BuildWritePageCache(cfg DeviceConfig, txn *Transaction, arrival uint64) []*StagePacket {
	nb := fullPageBytes(cfg, 0, txn.NumBytes)
	cmd := CmdProgCache
	return []*StagePacket{packet(txn.HostTransID, arrival, cmd, txn.Addr, 0, nb, txn.Data, txn.StatusData, txn.IsLastNxSub)}
}

// BuildEraseBlock expands a single-plane block erase.
func BuildEraseBlock(txn *Transaction, arrival uint64) []*StagePacket {
	return []*StagePacket{packet(txn.HostTransID, arrival, CmdBlockErase, txn.Addr, sentinelU16, 0, nil, txn.StatusData, true)}
}

// BuildEraseNxBlock expands a multi-plane block erase: one packet per address
// in planeAddrs, non-final packets using CmdBlockMultiplaneErase and the
// final one CmdBlockMultiplaneEraseFin, matching spec.md §4.2's "all planes
// with a set row register get erased on the FIN confirm" commit semantics.
func BuildEraseNxBlock(txn *Transaction, arrival uint64, planeAddrs []Address) []*StagePacket {
	pkts := make([]*StagePacket, len(planeAddrs))
	for i, a := range planeAddrs {
		cmd := CmdBlockMultiplaneErase
		last := i == len(planeAddrs)-1
		if last {
			cmd = CmdBlockMultiplaneEraseFin
		}
		pkts[i] = packet(txn.HostTransID, arrival, cmd, a, sentinelU16, 0, nil, txn.StatusData, last)
	}
	return pkts
}

// BuildReadNxPlane expands a multi-plane read: one packet per plane address,
// using CmdReadMultiplaneInit for the first packet, CmdReadMultiplane for
// interior ones, and CmdReadMultiplaneInitFin for the last. For the
// partial-column variant, set txn.ByteOff/txn.NumBytes (there is
// no dedicated multi-plane-random command alphabet; the partial transfer is
// expressed through Col/RandomBytes on the otherwise-identical commands, see
// DESIGN.md).
func BuildReadNxPlane(cfg DeviceConfig, txn *Transaction, arrival uint64, planeAddrs []Address) []*StagePacket {
	col := uint16(txn.ByteOff)
	nb := fullPageBytes(cfg, col, txn.NumBytes)
	pkts := make([]*StagePacket, len(planeAddrs))
	for i, a := range planeAddrs {
		last := i == len(planeAddrs)-1
		var cmd Command
		switch {
		case i == 0 && !last:
			cmd = CmdReadMultiplaneInit
		case last:
			cmd = CmdReadMultiplaneInitFin
		default:
			cmd = CmdReadMultiplane
		}
		var data []byte
		if last {
			data = txn.Data
		}
		pkts[i] = packet(txn.HostTransID, arrival, cmd, a, col, nb, data, txn.StatusData, last)
	}
	return pkts
}

// BuildWriteNxPlane expands a multi-plane program, one packet per plane
// address. Non-final planes latch into their own cache register only; the
// final confirm commits every addressed plane's cache register to its array
// in a single TIN step (see Die.transitCLE's prog-multiplane-FIN case).
func BuildWriteNxPlane(cfg DeviceConfig, txn *Transaction, arrival uint64, planeAddrs []Address, data [][]byte) []*StagePacket {
	nb := fullPageBytes(cfg, 0, txn.NumBytes)
	pkts := make([]*StagePacket, len(planeAddrs))
	for i, a := range planeAddrs {
		last := i == len(planeAddrs)-1
		cmd := CmdProgMultiplane
		if last {
			cmd = CmdProgMultiplaneFin
		}
		var d []byte
		if data != nil {
			d = data[i]
		}
		pkts[i] = packet(txn.HostTransID, arrival, cmd, a, 0, nb, d, txn.StatusData, last)
	}
	return pkts
}

// BuildWriteNxPlaneRandomColSelection is the random-column variant of
// BuildWriteNxPlane: every plane writes only [byteOff, byteOff+n), with the
// final plane's confirm latched as CmdProgMultiplaneFinRandom.
func BuildWriteNxPlaneRandomColSelection(cfg DeviceConfig, txn *Transaction, arrival uint64, planeAddrs []Address, data [][]byte) []*StagePacket {
	col := uint16(txn.ByteOff)
	nb := fullPageBytes(cfg, col, txn.NumBytes)
	pkts := make([]*StagePacket, len(planeAddrs))
	for i, a := range planeAddrs {
		last := i == len(planeAddrs)-1
		cmd := CmdProgMultiplaneRandom
		if last {
			cmd = CmdProgMultiplaneFinRandom
		}
		var d []byte
		if data != nil {
			d = data[i]
		}
		pkts[i] = packet(txn.HostTransID, arrival, cmd, a, col, nb, d, txn.StatusData, last)
	}
	return pkts
}

// BuildWriteNxPlaneCache expands a multi-plane cache program: interior and
// non-final-plane packets use CmdProgMultiplaneCache, the last plane's last
// sub-command in the chain uses CmdProgMultiplaneCacheFin. Per spec.md §4.4,
// only that single final sub-command carries IsLastOfTransaction — every
// other plane's packet, including non-final cache beats of the same plane,
// does not.
func BuildWriteNxPlaneCache(cfg DeviceConfig, txn *Transaction, arrival uint64, planeAddrs []Address, data [][]byte) []*StagePacket {
	nb := fullPageBytes(cfg, 0, txn.NumBytes)
	pkts := make([]*StagePacket, len(planeAddrs))
	for i, a := range planeAddrs {
		last := i == len(planeAddrs)-1 && txn.IsLastNxSub
		cmd := CmdProgMultiplaneCache
		if i == len(planeAddrs)-1 && txn.IsLastNxSub {
			cmd = CmdProgMultiplaneCacheFin
		}
		var d []byte
		if data != nil {
			d = data[i]
		}
		pkts[i] = packet(txn.HostTransID, arrival, cmd, a, 0, nb, d, txn.StatusData, last)
	}
	return pkts
}

// BuildInternalDataMovement expands a single-plane copyback: a ReadInternal
// step latches txn.Addr's page into the die's internal cache register, then
// a ProgInternal step commits it to txn.DestAddr. No host data ever crosses
// the bus for either step (cmd.IsInternal() forces Col to zero in Die.ALE).
func BuildInternalDataMovement(txn *Transaction, arrival uint64) []*StagePacket {
	return []*StagePacket{
		packet(txn.HostTransID, arrival, CmdReadInternal, txn.Addr, 0, 0, nil, nil, false),
		packet(txn.HostTransID, arrival, CmdProgInternal, txn.DestAddr, 0, 0, nil, txn.StatusData, true),
	}
}

// BuildInternalDataMovementNxPlane is the multi-plane counterpart of
// BuildInternalDataMovement: one read-side packet per source plane address,
// followed by one write-side packet per destination plane address (the
// final one FIN).
func BuildInternalDataMovementNxPlane(txn *Transaction, arrival uint64, srcAddrs, dstAddrs []Address) []*StagePacket {
	pkts := make([]*StagePacket, 0, len(srcAddrs)+len(dstAddrs))
	for i, a := range srcAddrs {
		cmd := CmdReadInternal
		if i == len(srcAddrs)-1 {
			cmd = CmdReadInternalMultiplaneFin
		} else if i > 0 {
			cmd = CmdReadInternalMultiplane
		}
		pkts = append(pkts, packet(txn.HostTransID, arrival, cmd, a, 0, 0, nil, nil, false))
	}
	for i, a := range dstAddrs {
		last := i == len(dstAddrs)-1
		cmd := CmdProgInternal
		if last {
			cmd = CmdProgInternalMultiplaneFin
		} else if i > 0 {
			cmd = CmdProgInternalMultiplane
		}
		pkts = append(pkts, packet(txn.HostTransID, arrival, cmd, a, 0, 0, nil, txn.StatusData, last))
	}
	return pkts
}

// BuildReset expands a device reset into a single RESET packet, which
// LogicalUnit.Issue treats specially: it drains the target die's queue
// before the RESET_DELTA stage runs.
func BuildReset(hostTransID uint32, arrival uint64) *StagePacket {
	return packet(hostTransID, arrival, CmdReset, 0, sentinelU16, 0, nil, nil, true)
}
