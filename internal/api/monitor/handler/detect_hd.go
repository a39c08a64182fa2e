package monitorHandler

import (
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	"VisionGuard/internal/api/monitor"
	contextPkg "VisionGuard/pkg/context"
	"VisionGuard/pkg/handlerUtil"
	"VisionGuard/pkg/log"
)

func (h *MonitorHandler) DetectObjects(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 2*time.Minute)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing object detection request")

	var imageData []byte
	var filename string
	prompt := ctx.FormValue("prompt")

	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		if err := h.utils.ValidateImageFile(file); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}

		fileContent, err := file.Open()
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
		}
		defer fileContent.Close()

		encoded, err := h.utils.ConvertFileToBase64(fileContent)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "convert_to_base64")
		}
		imageData, _ = base64.StdEncoding.DecodeString(encoded)
		filename = file.Filename
	} else {
		var req monitor.DetectRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		imageData, err = h.utils.DecodeFramePayload([]byte(req.ImageBase64))
		if err != nil {
			return errHandler.Handle(ctx, requestID, monitor.ErrInvalidImagePayload, ctx.Path(), "decode_image")
		}
		filename = "upload.jpg"
		if req.Prompt != "" {
			prompt = req.Prompt
		}
	}

	boxes, annotated, err := h.monitorService.DetectObjects(c, imageData, filename, prompt)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_objects")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"boxes":      len(boxes),
		}).Info("Object detection successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, monitor.DetectResponse{
			Boxes:     boxes,
			Annotated: annotated,
		})
	}
}

func (h *MonitorHandler) Gallery(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	entries, err := h.monitorService.ListGallery()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_gallery")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, monitor.GalleryResponse{
		Entries: entries,
	})
}
