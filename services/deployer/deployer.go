package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"uxy/pkg/telemetry"
	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/changecontrol"
	"uxy/services/cloud"
	"uxy/services/environment"
	"uxy/services/planner"
)

// State is a step of the deployment state machine.
type State string

const (
	StateValidateConfig       State = "validate_config"
	StateReplaceFiles         State = "replace_files"
	StateLoadEnvironment      State = "load_environment"
	StateCheckUpdates         State = "check_updates"
	StateExecutePlan          State = "execute_plan"
	StateUpdateRemoteFunction State = "update_remote_function"
	StatePersistBlueprint     State = "persist_blueprint"
	StateDone                 State = "done"
	StateCancelled            State = "cancelled"
)

// BlueprintStore loads and saves the blueprint of an application.
type BlueprintStore interface {
	Load(ctx context.Context, app string) (*blueprint.Blueprint, error)
	Save(ctx context.Context, bp *blueprint.Blueprint) error
}

// ChatPlatform applies update actions to the bot's platform profile.
type ChatPlatform interface {
	ValidateToken(ctx context.Context) error
	InitGreeting(ctx context.Context) error
	InitMenu(ctx context.Context, menu any) error
	InitDescription(ctx context.Context, text string) error
	InitURLWhitelist(ctx context.Context, urls []string) error
}

// ChatPlatformFactory builds a ChatPlatform once the page token is known.
type ChatPlatformFactory func(token string) (ChatPlatform, error)

// FunctionUpdater replaces the code of the deployed function.
type FunctionUpdater interface {
	Update(ctx context.Context, name, key string, art cloud.Artifact) (cloud.UpdateResult, error)
}

// Publisher emits deployment events.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Options wires a Deployer. Publisher and Metrics are optional.
type Options struct {
	Root      string
	SourceDir string
	// Stage overrides app:stage when set.
	Stage string

	Store     BlueprintStore
	Chat      ChatPlatformFactory
	Functions FunctionUpdater
	Publisher Publisher
	Metrics   *telemetry.Metrics

	Environment environment.Options
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Report summarises one deployment run.
type Report struct {
	DeploymentID string
	App          string
	Stage        string
	State        State
	Decision     changecontrol.Decision
	Actions      []planner.UpdateAction
	// Inert lists planned actions whose execution guard made them no-ops.
	Inert    []planner.UpdateAction
	Function cloud.UpdateResult
	Count    int
	Duration time.Duration
}

// Deployer runs the deployment state machine for one project.
type Deployer struct {
	opts    Options
	control *changecontrol.ChangeControl
}

// New validates the collaborators and returns a Deployer.
func New(opts Options) (*Deployer, error) {
	if opts.Store == nil {
		return nil, errors.New("blueprint store is required")
	}
	if opts.Chat == nil {
		return nil, errors.New("chat platform factory is required")
	}
	if opts.Functions == nil {
		return nil, errors.New("function updater is required")
	}
	if opts.SourceDir == "" {
		opts.SourceDir = changecontrol.DefaultSourceDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	control, err := changecontrol.New(opts.Root, opts.SourceDir)
	if err != nil {
		return nil, err
	}
	return &Deployer{opts: opts, control: control}, nil
}

// run carries the state threaded through one deployment.
type run struct {
	report Report
	cfg    *appconfig.Config
	bp     *blueprint.Blueprint
	chat   ChatPlatform
	logger zerolog.Logger
}

type step struct {
	state State
	fn    func(context.Context, *run) error
}

// Deploy walks ValidateConfig through PersistBlueprint. The first failing
// step cancels the run and is returned as a *Failure; nothing already applied
// is rolled back.
func (d *Deployer) Deploy(ctx context.Context) (Report, error) {
	start := d.opts.Now()
	r := &run{
		report: Report{DeploymentID: uuid.NewString()},
		logger: d.opts.Logger,
	}

	ctx, span := telemetry.Tracer().Start(ctx, "uxy.deploy")
	defer span.End()

	steps := []step{
		{StateValidateConfig, d.validateConfig},
		{StateReplaceFiles, d.replaceFiles},
		{StateLoadEnvironment, d.loadEnvironment},
		{StateCheckUpdates, d.checkUpdates},
		{StateExecutePlan, d.executePlan},
		{StateUpdateRemoteFunction, d.updateRemoteFunction},
		{StatePersistBlueprint, d.persistBlueprint},
	}

	for _, s := range steps {
		if err := d.runStep(ctx, r, s); err != nil {
			failure := newFailure(s.state, err)
			span.RecordError(failure)
			span.SetStatus(codes.Error, string(failure.Kind))
			d.finish(ctx, r, start, failure)
			return r.report, failure
		}
	}

	d.finish(ctx, r, start, nil)
	return r.report, nil
}

// Plan validates the configuration and reports the change decision and the
// planned actions. It writes nothing and calls no remote service besides the
// blueprint store.
func (d *Deployer) Plan(ctx context.Context) (Report, error) {
	r := &run{
		report: Report{DeploymentID: uuid.NewString()},
		logger: d.opts.Logger,
	}
	for _, s := range []step{
		{StateValidateConfig, d.validateConfig},
		{StateCheckUpdates, d.checkUpdates},
	} {
		if err := d.runStep(ctx, r, s); err != nil {
			r.report.State = StateCancelled
			return r.report, newFailure(s.state, err)
		}
	}
	r.report.State = StateDone
	return r.report, nil
}

func (d *Deployer) runStep(ctx context.Context, r *run, s step) error {
	ctx, span := telemetry.Tracer().Start(ctx, "uxy.deploy."+string(s.state))
	defer span.End()
	span.SetAttributes(
		attribute.String("uxy.deployment_id", r.report.DeploymentID),
		attribute.String("uxy.stage", r.report.Stage),
	)

	r.report.State = s.state
	r.logger.Debug().Ctx(ctx).Str("state", string(s.state)).Msg("entering state")

	if err := s.fn(ctx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (d *Deployer) validateConfig(_ context.Context, r *run) error {
	cfg, err := appconfig.Load(d.opts.Root)
	if err != nil {
		return err
	}
	stage := cfg.ResolveStage(d.opts.Stage)
	if err := appconfig.Validate(cfg, stage); err != nil {
		return err
	}

	r.cfg = cfg
	r.report.App = cfg.Name
	r.report.Stage = stage
	r.logger = r.logger.With().
		Str("deployment_id", r.report.DeploymentID).
		Str("app", cfg.Name).
		Str("stage", stage).
		Logger()
	r.logger.Info().Msg("app configuration is valid")
	return nil
}

func (d *Deployer) replaceFiles(_ context.Context, r *run) error {
	return appconfig.ReplaceFiles(d.opts.Root, r.cfg, r.report.Stage, r.logger)
}

func (d *Deployer) loadEnvironment(ctx context.Context, r *run) error {
	env, err := environment.Load(d.opts.Root, d.opts.Environment)
	if err != nil {
		return err
	}

	chat, err := d.opts.Chat(env.PageToken)
	if err != nil {
		return err
	}
	if err := chat.ValidateToken(ctx); err != nil {
		return err
	}
	r.chat = chat
	r.logger.Info().Ctx(ctx).Msg("environment loaded")
	return nil
}

func (d *Deployer) checkUpdates(ctx context.Context, r *run) error {
	bp, err := d.opts.Store.Load(ctx, r.cfg.Name)
	if err != nil {
		if errors.Is(err, blueprint.ErrNotFound) {
			return fmt.Errorf("%w: run uxy setup first", err)
		}
		return fmt.Errorf("load blueprint: %w", err)
	}

	decision, err := d.control.Compare(ctx, bp.Checksums)
	if err != nil {
		return fmt.Errorf("check updates: %w", err)
	}

	r.bp = bp
	r.report.Decision = decision
	r.report.Actions = planner.Plan(bp, r.cfg, decision)
	r.report.Count = bp.DeploymentCount

	r.logger.Info().Ctx(ctx).
		Bool("changed", decision.Changed).
		Strs("added", decision.Added).
		Strs("removed", decision.Removed).
		Strs("modified", decision.Modified).
		Int("actions", len(r.report.Actions)).
		Msg("checked for updates")
	return nil
}

func (d *Deployer) executePlan(ctx context.Context, r *run) error {
	for _, action := range r.report.Actions {
		applied, err := d.apply(ctx, r, action)
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		if !applied {
			r.report.Inert = append(r.report.Inert, action)
			r.logger.Info().Ctx(ctx).Stringer("action", action).Msg("action guard not met, skipping")
			continue
		}
		d.opts.Metrics.ObserveAction(action.String())
		r.logger.Info().Ctx(ctx).Stringer("action", action).Msg("chatbot updated")
	}
	return nil
}

// apply executes one action. It reports false when the action's guard makes
// it inert.
func (d *Deployer) apply(ctx context.Context, r *run, action planner.UpdateAction) (bool, error) {
	chatbot := r.cfg.Chatbot
	switch action {
	case planner.InitGreeting:
		return true, r.chat.InitGreeting(ctx)
	case planner.InitMenu:
		if !chatbot.EnableMenu {
			return false, nil
		}
		return true, r.chat.InitMenu(ctx, chatbot.PersistentMenu)
	case planner.InitDescription:
		if r.cfg.Description == "" {
			return false, nil
		}
		return true, r.chat.InitDescription(ctx, r.cfg.Description)
	case planner.InitURLWhitelist:
		if len(chatbot.URLsToWhiteList) == 0 {
			return false, nil
		}
		return true, r.chat.InitURLWhitelist(ctx, chatbot.URLsToWhiteList)
	default:
		return false, fmt.Errorf("unknown update action %d", int(action))
	}
}

func (d *Deployer) updateRemoteFunction(ctx context.Context, r *run) error {
	if r.bp.LambdaName == "" {
		return errors.New("blueprint has no lambda:name, run uxy setup first")
	}

	art, err := cloud.Package(ctx, d.opts.Root, d.opts.SourceDir, r.report.Decision.Fingerprints.Paths())
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s/%s.zip", r.cfg.Name, r.report.Stage, r.report.DeploymentID)
	result, err := d.opts.Functions.Update(ctx, r.bp.LambdaName, key, art)
	if err != nil {
		return err
	}
	r.report.Function = result
	return nil
}

func (d *Deployer) persistBlueprint(ctx context.Context, r *run) error {
	bp := r.bp.Clone()
	now := d.opts.Now().UTC()

	bp.Checksums = r.report.Decision.Fingerprints.Clone()
	bp.DeploymentCount++
	bp.Stage = r.report.Stage
	bp.Description = r.cfg.Description
	// A disabled menu is never pushed, so nothing is recorded as deployed.
	bp.ChatbotMenu = nil
	if r.cfg.Chatbot.EnableMenu {
		bp.ChatbotMenu = r.cfg.Chatbot.PersistentMenu
	}
	bp.ChatbotURLWhitelist = append([]string(nil), r.cfg.Chatbot.URLsToWhiteList...)
	bp.LastDeploymentID = r.report.DeploymentID
	bp.LastDeployedAt = &now

	if err := d.opts.Store.Save(ctx, bp); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}

	r.bp = bp
	r.report.Count = bp.DeploymentCount
	r.logger.Info().Ctx(ctx).Int("deployment_count", bp.DeploymentCount).Msg("blueprint saved")
	return nil
}

func (d *Deployer) finish(ctx context.Context, r *run, start time.Time, failure *Failure) {
	r.report.Duration = d.opts.Now().Sub(start)

	event := Event{
		DeploymentID: r.report.DeploymentID,
		App:          r.report.App,
		Stage:        r.report.Stage,
		Count:        r.report.Count,
		Actions:      r.report.Actions,
		At:           d.opts.Now().UTC(),
	}
	subject := SubjectFinished
	result := "finished"

	if failure != nil {
		r.report.State = StateCancelled
		event.Kind = failure.Kind
		event.Error = failure.Err.Error()
		subject = SubjectCancelled
		result = "cancelled"
		r.logger.Error().Ctx(ctx).Err(failure.Err).
			Str("state", string(failure.State)).
			Str("kind", string(failure.Kind)).
			Msg("deployment cancelled")
	} else {
		r.report.State = StateDone
		r.logger.Info().Ctx(ctx).Dur("elapsed", r.report.Duration).Msg("deployment finished")
	}
	event.State = r.report.State

	d.opts.Metrics.ObserveDeployment(r.report.Stage, result, r.report.Duration)

	if d.opts.Publisher != nil {
		if err := d.opts.Publisher.Publish(ctx, subject, event); err != nil {
			r.logger.Warn().Ctx(ctx).Err(err).Str("subject", subject).Msg("publish deployment event")
		}
	}
}
