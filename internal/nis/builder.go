package nis

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// FrameSource is the part of Transport a fetch cycle needs.
type FrameSource interface {
	SendRequest(cmd string) error
	Next() ([]byte, error)
}

// StatusBuilder runs fetch cycles and publishes complete results to a Store.
type StatusBuilder struct {
	store  *Store
	parser *LineParser
	logger *logrus.Logger
	now    func() time.Time
}

// NewStatusBuilder creates a builder that publishes into store.
func NewStatusBuilder(store *Store, logger *logrus.Logger) *StatusBuilder {
	return &StatusBuilder{
		store:  store,
		parser: NewLineParser(logger),
		logger: logger,
		now:    time.Now,
	}
}

// RunFetchCycle sends the status request over src and consumes the reply.
// The store is only replaced when the reply terminates normally and carries
// every expected field.
func (b *StatusBuilder) RunFetchCycle(src FrameSource) error {
	var acc Accumulator

	if err := src.SendRequest(StatusCommand); err != nil {
		return err
	}

	lines := 0
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrFrameTooBig) {
				b.logger.WithError(err).Error("nis: oversized frame from daemon, protocol mismatch?")
			}
			return err
		}
		lines++
		b.parser.ApplyLine(string(frame), &acc)
	}

	if !acc.present.Contains(ExpectedFields) {
		missing := acc.present.Missing(ExpectedFields)
		b.logger.WithFields(logrus.Fields{
			"lines":   lines,
			"missing": fmt.Sprint(missing),
		}).Warn("nis: could not grab all the expected fields, not updating")
		return wrap(ErrIncompleteFields, fmt.Errorf("missing %v", missing))
	}

	snap := Snapshot{Values: acc.values, Present: acc.present}
	snap.deriveCharging()
	snap.CapturedAt = b.now()
	b.store.publish(snap)

	b.logger.WithFields(logrus.Fields{
		"lines":    lines,
		"linev":    snap.Values[LineVoltage],
		"bcharge":  snap.Values[BatteryCharge],
		"online":   snap.Online(),
		"charging": snap.Charging(),
	}).Debug("nis: published status")
	return nil
}
